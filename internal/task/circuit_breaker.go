package task

import (
	"sync"
	"time"
)

// BreakerState identifies the circuit breaker's current mode.
type BreakerState string

// Circuit breaker states.
const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// CircuitBreaker tracks consecutive failures of task executions and opens a
// fail-fast gate once a threshold is reached. After the cooldown has elapsed
// a single probe is admitted; its outcome either re-closes or re-opens the
// circuit. Safe for concurrent use.
type CircuitBreaker struct {
	mu          sync.Mutex
	threshold   int
	cooldown    time.Duration
	state       BreakerState
	failures    int
	lastFailure time.Time

	// now is replaceable in tests.
	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker that opens after threshold
// consecutive failures and stays open for the given cooldown.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     BreakerClosed,
		now:       time.Now,
	}
}

// Allow reports whether an execution attempt may proceed. While open it
// returns false until the cooldown has elapsed since the last failure, then
// transitions to half-open and admits exactly one probe; further calls return
// false until the probe's outcome is recorded.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.lastFailure) >= b.cooldown {
			b.state = BreakerHalfOpen
			return true
		}
		return false
	case BreakerHalfOpen:
		// Probe already in flight.
		return false
	default:
		return true
	}
}

// ReturnProbe gives back a half-open probe admitted by Allow when the
// attempt was abandoned before an outcome could be recorded, for example
// because the task was cancelled between dequeue and dispatch. The breaker
// reverts to open with the cooldown timer untouched, so the next Allow may
// admit a fresh probe immediately. No-op in any other state.
func (b *CircuitBreaker) ReturnProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
	}
}

// RecordSuccess resets the failure counter and closes the circuit.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = BreakerClosed
	b.failures = 0
}

// RecordFailure increments the failure counter, opening the circuit when the
// threshold is reached or when a half-open probe fails. The cooldown timer
// restarts from the most recent failure.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()
	if b.state == BreakerHalfOpen || b.failures >= b.threshold {
		b.state = BreakerOpen
	}
}

// State returns the breaker's current mode.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}
