package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/phrazzld/dispatchq/internal/api"
	"github.com/phrazzld/dispatchq/internal/config"
	"github.com/phrazzld/dispatchq/internal/platform/logger"
	"github.com/phrazzld/dispatchq/internal/platform/metrics"
	"github.com/phrazzld/dispatchq/internal/task"
)

// application holds the wired-up dependencies for the server process.
type application struct {
	config    *config.Config
	logger    *slog.Logger
	scheduler *task.Scheduler
	registry  *api.Registry
	metrics   *metrics.Metrics
}

// newApplication loads configuration and constructs all components.
func newApplication() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Server)
	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"workers", cfg.Queue.WorkerCount,
		"max_queue_size", cfg.Queue.MaxQueueSize)

	scheduler := task.NewScheduler(task.Config{
		MaxQueueSize:     cfg.Queue.MaxQueueSize,
		MaxConcurrent:    cfg.Queue.MaxConcurrent,
		WorkerCount:      cfg.Queue.WorkerCount,
		DefaultTimeout:   cfg.Queue.DefaultTimeout,
		RatePerSecond:    cfg.Queue.RatePerSecond,
		RateBurst:        cfg.Queue.RateBurst,
		BreakerThreshold: cfg.Queue.BreakerThreshold,
		BreakerCooldown:  cfg.Queue.BreakerCooldown,
		BackoffBase:      cfg.Queue.BackoffBase,
	}, log)

	m := metrics.New(scheduler, prometheus.DefaultRegisterer)
	scheduler.SetTaskObserver(m.ObserveTask)

	registry := api.NewRegistry()
	if err := registerBuiltinTasks(registry); err != nil {
		return nil, fmt.Errorf("failed to register task types: %w", err)
	}

	return &application{
		config:    cfg,
		logger:    log,
		scheduler: scheduler,
		registry:  registry,
		metrics:   m,
	}, nil
}

// registerBuiltinTasks wires the task types this deployment can run.
// Real generation and transcoding runners are registered by the embedding
// application; the built-ins exist for smoke testing a bare deployment.
func registerBuiltinTasks(registry *api.Registry) error {
	// echo returns its payload unchanged.
	if err := registry.Register("echo", func(payload json.RawMessage) (task.Func, error) {
		return func(ctx context.Context) (any, error) {
			return json.RawMessage(payload), nil
		}, nil
	}); err != nil {
		return err
	}

	// sleep holds a worker slot for the requested duration, honoring
	// cancellation.
	return registry.Register("sleep", func(payload json.RawMessage) (task.Func, error) {
		var req struct {
			DurationMs int64 `json:"duration_ms"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("invalid sleep payload: %w", err)
		}
		if req.DurationMs <= 0 {
			return nil, fmt.Errorf("duration_ms must be positive")
		}
		return func(ctx context.Context) (any, error) {
			select {
			case <-time.After(time.Duration(req.DurationMs) * time.Millisecond):
				return req.DurationMs, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}, nil
	})
}

// cleanup releases application resources during shutdown.
func (app *application) cleanup() {
	app.scheduler.Stop()
}
