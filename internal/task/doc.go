// Package task implements the asynchronous priority task scheduler used by
// the dispatchq backend. Callers submit opaque units of work with a priority,
// optional dependencies, and a retry/timeout policy; a fixed worker pool
// executes ready tasks in (priority, enqueue order), gated by a token-bucket
// rate limiter and a circuit breaker, and reports outcomes back through
// status queries, awaited results, and queue statistics.
package task
