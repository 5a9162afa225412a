package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/dispatchq/internal/api/shared"
	"github.com/phrazzld/dispatchq/internal/task"
)

// Queue is the slice of the scheduler the handlers need.
type Queue interface {
	Submit(id string, fn task.Func, priority task.Priority, opts ...task.Option) (string, error)
	Cancel(id string) bool
	GetStatus(id string) (task.Snapshot, bool)
	AwaitResult(ctx context.Context, id string) (any, error)
	GetStatistics() task.QueueSnapshot
}

// SubmitTaskRequest represents the request body for submitting a task.
type SubmitTaskRequest struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"     validate:"required"`
	Payload      json.RawMessage `json:"payload"`
	Priority     string          `json:"priority" validate:"omitempty,oneof=critical high normal low background"`
	TimeoutMs    int64           `json:"timeout_ms"  validate:"gte=0"`
	MaxRetries   *int            `json:"max_retries" validate:"omitempty,gte=0"`
	Dependencies []string        `json:"dependencies"`
}

// TaskResponse represents the response data for a task.
type TaskResponse struct {
	ID           string     `json:"id"`
	State        string     `json:"state"`
	Priority     string     `json:"priority"`
	Retries      int        `json:"retries"`
	Result       any        `json:"result,omitempty"`
	Error        string     `json:"error,omitempty"`
	Dependencies []string   `json:"dependencies,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	EnqueuedAt   *time.Time `json:"enqueued_at,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// StatsResponse represents the response data for queue statistics.
type StatsResponse struct {
	QueueSize           int     `json:"queue_size"`
	WaitingCount        int     `json:"waiting_count"`
	RunningCount        int     `json:"running_count"`
	SubmittedCount      uint64  `json:"submitted_count"`
	AttemptCount        uint64  `json:"attempt_count"`
	CompletedCount      uint64  `json:"completed_count"`
	FailedCount         uint64  `json:"failed_count"`
	CancelledCount      uint64  `json:"cancelled_count"`
	TimedOutCount       uint64  `json:"timed_out_count"`
	ThroughputPerSecond float64 `json:"throughput_per_second"`
	AverageDurationMs   int64   `json:"average_duration_ms"`
	CircuitBreakerState string  `json:"circuit_breaker_state"`
	RateLimiterTokens   float64 `json:"rate_limiter_tokens"`
}

// QueueHandler handles task queue HTTP requests.
type QueueHandler struct {
	queue    Queue
	registry *Registry
	logger   *slog.Logger
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(queue Queue, registry *Registry, logger *slog.Logger) *QueueHandler {
	return &QueueHandler{
		queue:    queue,
		registry: registry,
		logger:   logger,
	}
}

// SubmitTask handles POST /api/tasks requests.
func (h *QueueHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	fn, err := h.registry.Resolve(req.Type, req.Payload)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	priority := task.PriorityNormal
	if req.Priority != "" {
		priority, err = task.ParsePriority(req.Priority)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	var opts []task.Option
	if req.TimeoutMs > 0 {
		opts = append(opts, task.WithTimeout(time.Duration(req.TimeoutMs)*time.Millisecond))
	}
	if req.MaxRetries != nil {
		opts = append(opts, task.WithMaxRetries(*req.MaxRetries))
	}
	if len(req.Dependencies) > 0 {
		opts = append(opts, task.WithDependencies(req.Dependencies...))
	}

	id, err := h.queue.Submit(req.ID, fn, priority, opts...)
	switch {
	case errors.Is(err, task.ErrQueueFull):
		shared.RespondWithError(w, r, http.StatusTooManyRequests, "Queue is full, try again later")
		return
	case errors.Is(err, task.ErrDuplicateID):
		shared.RespondWithError(w, r, http.StatusConflict, "Task id already exists")
		return
	case errors.Is(err, task.ErrQueueClosed):
		shared.RespondWithError(w, r, http.StatusServiceUnavailable, "Queue is shutting down")
		return
	case err != nil:
		h.logger.Error("failed to submit task", "error", err, "task_type", req.Type)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to submit task")
		return
	}

	snap, _ := h.queue.GetStatus(id)
	// Processing happens asynchronously.
	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(snap))
}

// GetTask handles GET /api/tasks/{id} requests.
func (h *QueueHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, found := h.queue.GetStatus(id)
	if !found {
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(snap))
}

// GetTaskResult handles GET /api/tasks/{id}/result requests, blocking until
// the task reaches a terminal state or the optional timeout_ms query
// parameter elapses.
func (h *QueueHandler) GetTaskResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx := r.Context()
	if raw := r.URL.Query().Get("timeout_ms"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms <= 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid timeout_ms")
			return
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
		defer cancel()
	}

	result, err := h.queue.AwaitResult(ctx, id)
	switch {
	case errors.Is(err, task.ErrNotFound):
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		return
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		shared.RespondWithError(w, r, http.StatusRequestTimeout, "Timed out waiting for task result")
		return
	}

	snap, _ := h.queue.GetStatus(id)
	resp := taskToResponse(snap)
	resp.Result = result
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// CancelTask handles DELETE /api/tasks/{id} requests.
func (h *QueueHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !h.queue.Cancel(id) {
		snap, found := h.queue.GetStatus(id)
		if !found {
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return
		}
		shared.RespondWithError(w, r, http.StatusConflict,
			"Task cannot be cancelled in state "+string(snap.State))
		return
	}

	snap, _ := h.queue.GetStatus(id)
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(snap))
}

// GetQueueStats handles GET /api/queue/stats requests.
func (h *QueueHandler) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	snap := h.queue.GetStatistics()
	shared.RespondWithJSON(w, r, http.StatusOK, StatsResponse{
		QueueSize:           snap.QueueSize,
		WaitingCount:        snap.WaitingCount,
		RunningCount:        snap.RunningCount,
		SubmittedCount:      snap.SubmittedCount,
		AttemptCount:        snap.AttemptCount,
		CompletedCount:      snap.CompletedCount,
		FailedCount:         snap.FailedCount,
		CancelledCount:      snap.CancelledCount,
		TimedOutCount:       snap.TimedOutCount,
		ThroughputPerSecond: snap.ThroughputPerSecond,
		AverageDurationMs:   snap.AverageDuration.Milliseconds(),
		CircuitBreakerState: string(snap.CircuitBreakerState),
		RateLimiterTokens:   snap.RateLimiterTokens,
	})
}

// taskToResponse converts a task.Snapshot to a TaskResponse.
func taskToResponse(snap task.Snapshot) TaskResponse {
	resp := TaskResponse{
		ID:           snap.ID,
		State:        string(snap.State),
		Priority:     snap.Priority.String(),
		Retries:      snap.Retries,
		Result:       snap.Result,
		Dependencies: snap.Dependencies,
		CreatedAt:    snap.CreatedAt,
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	if !snap.EnqueuedAt.IsZero() {
		enqueued := snap.EnqueuedAt
		resp.EnqueuedAt = &enqueued
	}
	if !snap.StartedAt.IsZero() {
		started := snap.StartedAt
		resp.StartedAt = &started
	}
	if !snap.CompletedAt.IsZero() {
		completed := snap.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}
