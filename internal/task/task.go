package task

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Priority orders tasks in the ready queue. Lower values dequeue first.
type Priority int

// Priority levels from most to least urgent.
const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
	PriorityBackground
)

// String returns the lowercase name of the priority level.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityBackground:
		return "background"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority converts a priority name (case-insensitive) to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(s) {
	case "critical":
		return PriorityCritical, nil
	case "high":
		return PriorityHigh, nil
	case "normal":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	case "background":
		return PriorityBackground, nil
	default:
		return PriorityNormal, fmt.Errorf("unknown priority %q", s)
	}
}

// State represents the current lifecycle state of a task.
type State string

// Possible task states.
const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
	StateTimedOut  State = "timed_out"
)

// Terminal reports whether no further state transitions can occur.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateTimedOut:
		return true
	default:
		return false
	}
}

// Func is the unit of schedulable work: an opaque closure with its arguments
// pre-bound by the caller. The scheduler passes a context carrying the task's
// execution deadline and cancellation signal; bodies are expected (though not
// guaranteed) to check it periodically.
type Func func(ctx context.Context) (any, error)

// DefaultMaxRetries is the retry budget applied when a task is submitted
// without WithMaxRetries.
const DefaultMaxRetries = 3

// Task is the scheduler's internal record for one unit of work. All mutable
// fields are guarded by the scheduler mutex.
type Task struct {
	id           string
	fn           Func
	priority     Priority
	dependencies []string
	maxRetries   int
	timeout      time.Duration

	state       State
	retries     int
	result      any
	err         error
	createdAt   time.Time
	enqueuedAt  time.Time
	startedAt   time.Time
	completedAt time.Time

	// seq breaks priority ties in submission order and is reassigned on
	// every re-enqueue so retries do not starve fresh submissions.
	seq       uint64
	heapIndex int

	// cancel is non-nil while the task body is running.
	cancel context.CancelFunc

	// done is closed on the transition to a terminal state.
	done chan struct{}
}

// Option customizes a task at submission time.
type Option func(*Task)

// WithTimeout overrides the queue-wide default execution deadline.
func WithTimeout(d time.Duration) Option {
	return func(t *Task) {
		t.timeout = d
	}
}

// WithMaxRetries overrides the default retry budget for failed executions.
func WithMaxRetries(n int) Option {
	return func(t *Task) {
		if n >= 0 {
			t.maxRetries = n
		}
	}
}

// WithDependencies lists task ids that must complete successfully before
// this task becomes eligible to run.
func WithDependencies(ids ...string) Option {
	return func(t *Task) {
		t.dependencies = append(t.dependencies, ids...)
	}
}

// Snapshot is an immutable copy of a task's observable state, safe to use
// outside the scheduler mutex.
type Snapshot struct {
	ID           string
	Priority     Priority
	State        State
	Retries      int
	Result       any
	Err          error
	Dependencies []string
	CreatedAt    time.Time
	EnqueuedAt   time.Time
	StartedAt    time.Time
	CompletedAt  time.Time
}

// Duration returns the task's execution time, or zero if it never started
// or has not yet finished.
func (s Snapshot) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.CompletedAt.IsZero() {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt)
}

// snapshotLocked copies the task's state. Caller must hold the scheduler mutex.
func (t *Task) snapshotLocked() Snapshot {
	deps := make([]string, len(t.dependencies))
	copy(deps, t.dependencies)
	return Snapshot{
		ID:           t.id,
		Priority:     t.priority,
		State:        t.state,
		Retries:      t.retries,
		Result:       t.result,
		Err:          t.err,
		Dependencies: deps,
		CreatedAt:    t.createdAt,
		EnqueuedAt:   t.enqueuedAt,
		StartedAt:    t.startedAt,
		CompletedAt:  t.completedAt,
	}
}
