package task

import "errors"

// Common errors returned by the scheduler.
var (
	// ErrQueueFull is returned by Submit when the combined size of the ready
	// and waiting sets has reached the configured maximum. Callers are
	// expected to back off and resubmit.
	ErrQueueFull = errors.New("task queue is full")

	// ErrQueueClosed is returned by Submit after the scheduler has stopped.
	ErrQueueClosed = errors.New("task queue is closed")

	// ErrDuplicateID is returned by Submit when a task with the same id
	// already exists in the scheduler.
	ErrDuplicateID = errors.New("task id already exists")

	// ErrNotFound is returned when the referenced task id is unknown.
	ErrNotFound = errors.New("task not found")

	// ErrCircuitOpen marks an execution attempt skipped because the circuit
	// breaker was open. It consumes one of the task's retries.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTimeout marks a task whose body exceeded its execution deadline.
	ErrTimeout = errors.New("task execution timed out")

	// ErrCancelled marks a task terminated by an explicit Cancel call.
	ErrCancelled = errors.New("task cancelled")
)
