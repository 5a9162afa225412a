package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over file values. Returns a populated Config or an error if
// loading or validation fails.
func Load() (*Config, error) {
	return loadFrom("")
}

// loadFrom is Load with an explicit config file path, used by tests to
// avoid changing the working directory.
func loadFrom(configPath string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("queue.max_queue_size", 1000)
	v.SetDefault("queue.max_concurrent", 8)
	v.SetDefault("queue.worker_count", 4)
	v.SetDefault("queue.default_timeout", "1m")
	v.SetDefault("queue.rate_per_second", 0)
	v.SetDefault("queue.rate_burst", 1)
	v.SetDefault("queue.breaker_threshold", 5)
	v.SetDefault("queue.breaker_cooldown", "30s")
	v.SetDefault("queue.backoff_base", "1s")

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; everything can come from env.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables: DISPATCHQ_SERVER_PORT, DISPATCHQ_QUEUE_WORKER_COUNT, ...
	v.SetEnvPrefix("DISPATCHQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind the keys we care about so AutomaticEnv sees them
	// even when they are absent from the config file.
	bindEnvs := []struct {
		key    string
		envVar string
	}{
		{"server.port", "DISPATCHQ_SERVER_PORT"},
		{"server.log_level", "DISPATCHQ_SERVER_LOG_LEVEL"},
		{"queue.max_queue_size", "DISPATCHQ_QUEUE_MAX_QUEUE_SIZE"},
		{"queue.max_concurrent", "DISPATCHQ_QUEUE_MAX_CONCURRENT"},
		{"queue.worker_count", "DISPATCHQ_QUEUE_WORKER_COUNT"},
		{"queue.default_timeout", "DISPATCHQ_QUEUE_DEFAULT_TIMEOUT"},
		{"queue.rate_per_second", "DISPATCHQ_QUEUE_RATE_PER_SECOND"},
		{"queue.rate_burst", "DISPATCHQ_QUEUE_RATE_BURST"},
		{"queue.breaker_threshold", "DISPATCHQ_QUEUE_BREAKER_THRESHOLD"},
		{"queue.breaker_cooldown", "DISPATCHQ_QUEUE_BREAKER_COOLDOWN"},
		{"queue.backoff_base", "DISPATCHQ_QUEUE_BACKOFF_BASE"},
	}
	for _, env := range bindEnvs {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", env.envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
