package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server ServerConfig `mapstructure:"server" validate:"required"`
	Queue  QueueConfig  `mapstructure:"queue"  validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// QueueConfig contains the scheduler's tunables.
type QueueConfig struct {
	// MaxQueueSize caps the combined ready and waiting sets; submissions
	// beyond it are rejected.
	MaxQueueSize int `mapstructure:"max_queue_size" validate:"required,gt=0"`

	// MaxConcurrent bounds simultaneously running task bodies.
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"required,gt=0"`

	// WorkerCount is the number of dequeue loops.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`

	// DefaultTimeout applies to tasks submitted without their own timeout.
	DefaultTimeout time.Duration `mapstructure:"default_timeout" validate:"required"`

	// RatePerSecond and RateBurst configure the token bucket gating task
	// execution. A zero rate disables limiting.
	RatePerSecond float64 `mapstructure:"rate_per_second" validate:"gte=0"`
	RateBurst     float64 `mapstructure:"rate_burst"      validate:"gte=0"`

	// BreakerThreshold and BreakerCooldown configure the circuit breaker.
	BreakerThreshold int           `mapstructure:"breaker_threshold" validate:"required,gt=0"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"  validate:"required"`

	// BackoffBase is the delay before the first retry of a failed task.
	BackoffBase time.Duration `mapstructure:"backoff_base" validate:"required"`
}
