package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/dispatchq/internal/task"
)

// stubSource returns a fixed snapshot.
type stubSource struct {
	snap task.QueueSnapshot
}

func (s *stubSource) GetStatistics() task.QueueSnapshot {
	return s.snap
}

func TestCollectExportsSnapshot(t *testing.T) {
	source := &stubSource{snap: task.QueueSnapshot{
		QueueSize:           7,
		WaitingCount:        2,
		RunningCount:        3,
		SubmittedCount:      40,
		AttemptCount:        45,
		CompletedCount:      30,
		FailedCount:         4,
		CancelledCount:      2,
		TimedOutCount:       1,
		ThroughputPerSecond: 1.5,
		CircuitBreakerState: task.BreakerOpen,
		RateLimiterTokens:   0.5,
	}}

	reg := prometheus.NewPedanticRegistry()
	New(source, reg)

	expected := `
# HELP dispatchq_queue_size Tasks currently in the ready and waiting sets
# TYPE dispatchq_queue_size gauge
dispatchq_queue_size 7
# HELP dispatchq_tasks_completed_total Total number of tasks that finished successfully
# TYPE dispatchq_tasks_completed_total counter
dispatchq_tasks_completed_total 30
# HELP dispatchq_circuit_breaker_state Circuit breaker state (1 for the active state, 0 otherwise)
# TYPE dispatchq_circuit_breaker_state gauge
dispatchq_circuit_breaker_state{state="closed"} 0
dispatchq_circuit_breaker_state{state="half_open"} 0
dispatchq_circuit_breaker_state{state="open"} 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"dispatchq_queue_size",
		"dispatchq_tasks_completed_total",
		"dispatchq_circuit_breaker_state",
	)
	require.NoError(t, err)
}

func TestObserveTaskFeedsHistogram(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := New(&stubSource{}, reg)

	now := time.Now()
	m.ObserveTask(task.Snapshot{
		ID:          "t1",
		State:       task.StateCompleted,
		StartedAt:   now,
		CompletedAt: now.Add(40 * time.Millisecond),
	})
	m.ObserveTask(task.Snapshot{
		ID:          "t2",
		State:       task.StateFailed,
		StartedAt:   now,
		CompletedAt: now.Add(2 * time.Second),
	})

	count := testutil.CollectAndCount(m.taskDuration, "dispatchq_task_duration_seconds")
	assert.Equal(t, 2, count, "one series per terminal state")
}
