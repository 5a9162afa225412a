package task

import (
	"sync"
	"time"
)

// statsWindowSize bounds the rolling window of recent terminal transitions
// used for throughput estimation.
const statsWindowSize = 256

// throughputHorizon is the lookback period over which throughput per second
// is computed.
const throughputHorizon = 30 * time.Second

// windowEntry records one terminal transition.
type windowEntry struct {
	at       time.Time
	duration time.Duration
}

// queueStats accumulates monotonic counters plus a bounded rolling window of
// execution durations. Derived, never authoritative: task state lives on the
// tasks themselves. Safe for concurrent use.
type queueStats struct {
	mu        sync.Mutex
	submitted uint64
	attempts  uint64
	completed uint64
	failed    uint64
	cancelled uint64
	timedOut  uint64

	window []windowEntry
	next   int // ring buffer write position

	now func() time.Time
}

func newQueueStats() *queueStats {
	return &queueStats{
		window: make([]windowEntry, 0, statsWindowSize),
		now:    time.Now,
	}
}

func (s *queueStats) recordSubmitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted++
}

func (s *queueStats) recordAttempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
}

// recordOutcome counts a terminal transition and pushes the execution
// duration into the rolling window.
func (s *queueStats) recordOutcome(state State, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch state {
	case StateCompleted:
		s.completed++
	case StateFailed:
		s.failed++
	case StateCancelled:
		s.cancelled++
	case StateTimedOut:
		s.timedOut++
	}

	entry := windowEntry{at: s.now(), duration: duration}
	if len(s.window) < statsWindowSize {
		s.window = append(s.window, entry)
	} else {
		s.window[s.next] = entry
		s.next = (s.next + 1) % statsWindowSize
	}
}

// fill copies counters and derived figures into the snapshot.
func (s *queueStats) fill(snap *QueueSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.SubmittedCount = s.submitted
	snap.AttemptCount = s.attempts
	snap.CompletedCount = s.completed
	snap.FailedCount = s.failed
	snap.CancelledCount = s.cancelled
	snap.TimedOutCount = s.timedOut

	cutoff := s.now().Add(-throughputHorizon)
	recent := 0
	var total time.Duration
	for _, e := range s.window {
		if e.at.After(cutoff) {
			recent++
			total += e.duration
		}
	}
	snap.ThroughputPerSecond = float64(recent) / throughputHorizon.Seconds()
	if recent > 0 {
		snap.AverageDuration = total / time.Duration(recent)
	}
}

// QueueSnapshot is a point-in-time view of scheduler statistics.
type QueueSnapshot struct {
	QueueSize    int // ready + waiting
	WaitingCount int
	RunningCount int

	SubmittedCount uint64
	AttemptCount   uint64
	CompletedCount uint64
	FailedCount    uint64
	CancelledCount uint64
	TimedOutCount  uint64

	ThroughputPerSecond float64
	AverageDuration     time.Duration

	CircuitBreakerState BreakerState
	RateLimiterTokens   float64
}
