// Package metrics exposes scheduler statistics as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/phrazzld/dispatchq/internal/task"
)

// StatisticsSource yields point-in-time queue statistics on scrape.
type StatisticsSource interface {
	GetStatistics() task.QueueSnapshot
}

// Metrics implements prometheus.Collector over a StatisticsSource and
// records a per-task duration histogram through ObserveTask.
type Metrics struct {
	source StatisticsSource

	queueSize    *prometheus.Desc
	waitingTasks *prometheus.Desc
	runningTasks *prometheus.Desc
	submitted    *prometheus.Desc
	attempts     *prometheus.Desc
	completed    *prometheus.Desc
	failed       *prometheus.Desc
	cancelled    *prometheus.Desc
	timedOut     *prometheus.Desc
	throughput   *prometheus.Desc
	breakerState *prometheus.Desc
	limiterToken *prometheus.Desc

	taskDuration *prometheus.HistogramVec
}

// New creates the collector and registers it, along with the duration
// histogram, on the given registerer.
func New(source StatisticsSource, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		source: source,
		queueSize: prometheus.NewDesc(
			"dispatchq_queue_size",
			"Tasks currently in the ready and waiting sets",
			nil, nil,
		),
		waitingTasks: prometheus.NewDesc(
			"dispatchq_tasks_waiting",
			"Tasks held back by unsatisfied dependencies",
			nil, nil,
		),
		runningTasks: prometheus.NewDesc(
			"dispatchq_tasks_running",
			"Task bodies currently executing",
			nil, nil,
		),
		submitted: prometheus.NewDesc(
			"dispatchq_tasks_submitted_total",
			"Total number of tasks accepted by Submit",
			nil, nil,
		),
		attempts: prometheus.NewDesc(
			"dispatchq_task_attempts_total",
			"Total number of task body executions, including retries",
			nil, nil,
		),
		completed: prometheus.NewDesc(
			"dispatchq_tasks_completed_total",
			"Total number of tasks that finished successfully",
			nil, nil,
		),
		failed: prometheus.NewDesc(
			"dispatchq_tasks_failed_total",
			"Total number of tasks that exhausted their retries",
			nil, nil,
		),
		cancelled: prometheus.NewDesc(
			"dispatchq_tasks_cancelled_total",
			"Total number of tasks cancelled by callers",
			nil, nil,
		),
		timedOut: prometheus.NewDesc(
			"dispatchq_tasks_timed_out_total",
			"Total number of tasks that exceeded their deadline",
			nil, nil,
		),
		throughput: prometheus.NewDesc(
			"dispatchq_throughput_per_second",
			"Terminal transitions per second over the rolling window",
			nil, nil,
		),
		breakerState: prometheus.NewDesc(
			"dispatchq_circuit_breaker_state",
			"Circuit breaker state (1 for the active state, 0 otherwise)",
			[]string{"state"}, nil,
		),
		limiterToken: prometheus.NewDesc(
			"dispatchq_rate_limiter_tokens",
			"Tokens currently available in the rate limiter bucket",
			nil, nil,
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dispatchq_task_duration_seconds",
				Help:    "Task execution duration in seconds",
				Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"state"},
		),
	}

	reg.MustRegister(m, m.taskDuration)
	return m
}

// ObserveTask records the execution duration of a task that reached a
// terminal state. Wire it as the scheduler's task observer.
func (m *Metrics) ObserveTask(snap task.Snapshot) {
	m.taskDuration.WithLabelValues(string(snap.State)).Observe(snap.Duration().Seconds())
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.queueSize
	ch <- m.waitingTasks
	ch <- m.runningTasks
	ch <- m.submitted
	ch <- m.attempts
	ch <- m.completed
	ch <- m.failed
	ch <- m.cancelled
	ch <- m.timedOut
	ch <- m.throughput
	ch <- m.breakerState
	ch <- m.limiterToken
}

// Collect implements prometheus.Collector by snapshotting the source.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	snap := m.source.GetStatistics()

	ch <- prometheus.MustNewConstMetric(m.queueSize, prometheus.GaugeValue, float64(snap.QueueSize))
	ch <- prometheus.MustNewConstMetric(m.waitingTasks, prometheus.GaugeValue, float64(snap.WaitingCount))
	ch <- prometheus.MustNewConstMetric(m.runningTasks, prometheus.GaugeValue, float64(snap.RunningCount))
	ch <- prometheus.MustNewConstMetric(m.submitted, prometheus.CounterValue, float64(snap.SubmittedCount))
	ch <- prometheus.MustNewConstMetric(m.attempts, prometheus.CounterValue, float64(snap.AttemptCount))
	ch <- prometheus.MustNewConstMetric(m.completed, prometheus.CounterValue, float64(snap.CompletedCount))
	ch <- prometheus.MustNewConstMetric(m.failed, prometheus.CounterValue, float64(snap.FailedCount))
	ch <- prometheus.MustNewConstMetric(m.cancelled, prometheus.CounterValue, float64(snap.CancelledCount))
	ch <- prometheus.MustNewConstMetric(m.timedOut, prometheus.CounterValue, float64(snap.TimedOutCount))
	ch <- prometheus.MustNewConstMetric(m.throughput, prometheus.GaugeValue, snap.ThroughputPerSecond)
	ch <- prometheus.MustNewConstMetric(m.limiterToken, prometheus.GaugeValue, snap.RateLimiterTokens)

	for _, state := range []task.BreakerState{task.BreakerClosed, task.BreakerOpen, task.BreakerHalfOpen} {
		active := 0.0
		if snap.CircuitBreakerState == state {
			active = 1.0
		}
		ch <- prometheus.MustNewConstMetric(m.breakerState, prometheus.GaugeValue, active, string(state))
	}
}
