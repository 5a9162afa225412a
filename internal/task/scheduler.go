package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config holds scheduler configuration, immutable after construction.
type Config struct {
	// MaxQueueSize caps the combined size of the ready and waiting sets.
	MaxQueueSize int

	// MaxConcurrent is the hard ceiling on simultaneously running task
	// bodies. It may differ from WorkerCount; workers block on the
	// concurrency semaphore when it is smaller.
	MaxConcurrent int

	// WorkerCount determines how many concurrent workers dequeue tasks.
	WorkerCount int

	// DefaultTimeout is the execution deadline applied to tasks submitted
	// without WithTimeout.
	DefaultTimeout time.Duration

	// RatePerSecond is the sustained execution rate allowed by the token
	// bucket. Zero disables rate limiting.
	RatePerSecond float64

	// RateBurst is the token bucket's capacity.
	RateBurst float64

	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit breaker.
	BreakerThreshold int

	// BreakerCooldown is how long the breaker stays open before admitting
	// a probe.
	BreakerCooldown time.Duration

	// BackoffBase is the delay before the first retry; subsequent retries
	// double it.
	BackoffBase time.Duration
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		MaxQueueSize:     1000,
		MaxConcurrent:    8,
		WorkerCount:      4,
		DefaultTimeout:   time.Minute,
		RatePerSecond:    0,
		RateBurst:        1,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
		BackoffBase:      time.Second,
	}
}

// Scheduler is the queue controller: it accepts task submissions, orders
// them by priority and dependency readiness, bounds concurrency and external
// call rate, isolates repeated failures, and reports outcomes to callers.
// All methods are safe for concurrent use.
type Scheduler struct {
	config  Config
	logger  *slog.Logger
	breaker *CircuitBreaker
	limiter *RateLimiter
	backoff ExponentialBackoff
	stats   *queueStats

	// mu guards the ready heap, waiting set, completed set, task table,
	// and all per-task mutable state. Heap operations and dependency
	// promotion happen as one critical section.
	mu        sync.Mutex
	cond      *sync.Cond
	ready     readyQueue
	waiting   map[string]*Task
	tasks     map[string]*Task
	completed map[string]struct{}
	seq       uint64
	running   int
	stopped   bool

	sem        chan struct{}
	wg         sync.WaitGroup
	baseCtx    context.Context
	baseCancel context.CancelFunc

	// observer, if set, is called with a snapshot of every task reaching a
	// terminal state.
	observer func(Snapshot)
}

// NewScheduler creates a scheduler with the given configuration. Invalid
// zero or negative values fall back to DefaultConfig with a warning, in
// which case the scheduler still comes up usable.
func NewScheduler(config Config, logger *slog.Logger) *Scheduler {
	defaults := DefaultConfig()
	if config.MaxQueueSize <= 0 {
		logger.Warn("invalid max queue size, using default",
			"specified", config.MaxQueueSize,
			"default", defaults.MaxQueueSize)
		config.MaxQueueSize = defaults.MaxQueueSize
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = defaults.MaxConcurrent
	}
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count, using default",
			"specified", config.WorkerCount,
			"default", defaults.WorkerCount)
		config.WorkerCount = defaults.WorkerCount
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = defaults.DefaultTimeout
	}
	if config.BreakerThreshold <= 0 {
		config.BreakerThreshold = defaults.BreakerThreshold
	}
	if config.BreakerCooldown <= 0 {
		config.BreakerCooldown = defaults.BreakerCooldown
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = defaults.BackoffBase
	}
	if config.RatePerSecond > 0 && config.RateBurst <= 0 {
		config.RateBurst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		config:     config,
		logger:     logger,
		breaker:    NewCircuitBreaker(config.BreakerThreshold, config.BreakerCooldown),
		limiter:    NewRateLimiter(config.RatePerSecond, config.RateBurst),
		backoff:    ExponentialBackoff{Base: config.BackoffBase},
		stats:      newQueueStats(),
		waiting:    make(map[string]*Task),
		tasks:      make(map[string]*Task),
		completed:  make(map[string]struct{}),
		sem:        make(chan struct{}, config.MaxConcurrent),
		baseCtx:    ctx,
		baseCancel: cancel,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// SetTaskObserver registers a hook called with a snapshot of every task that
// reaches a terminal state. Must be called before Start.
func (s *Scheduler) SetTaskObserver(observer func(Snapshot)) {
	s.observer = observer
}

// Start launches the worker pool.
func (s *Scheduler) Start() {
	for i := 0; i < s.config.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	s.logger.Info("scheduler started",
		"workers", s.config.WorkerCount,
		"max_concurrent", s.config.MaxConcurrent,
		"max_queue_size", s.config.MaxQueueSize)
}

// Stop shuts the scheduler down: no further submissions are accepted,
// running task bodies are cancelled through their contexts, and Stop blocks
// until all workers have exited.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.baseCancel()
	s.cond.Broadcast()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Submit registers a task for execution. An empty id is replaced with a
// generated one. The returned id is the task's identity for all subsequent
// calls. Returns ErrQueueFull when the combined ready and waiting sets are
// at capacity, ErrDuplicateID when the id is reused, and ErrQueueClosed
// after Stop.
func (s *Scheduler) Submit(id string, fn Func, priority Priority, opts ...Option) (string, error) {
	if fn == nil {
		return "", errors.New("task function is required")
	}
	if id == "" {
		id = uuid.NewString()
	}

	t := &Task{
		id:         id,
		fn:         fn,
		priority:   priority,
		maxRetries: DefaultMaxRetries,
		state:      StatePending,
		createdAt:  time.Now(),
		heapIndex:  -1,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return "", ErrQueueClosed
	}
	if _, exists := s.tasks[id]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	if len(s.ready)+len(s.waiting) >= s.config.MaxQueueSize {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: capacity %d reached", ErrQueueFull, s.config.MaxQueueSize)
	}

	s.tasks[id] = t
	s.stats.recordSubmitted()

	if s.dependenciesMetLocked(t) {
		s.enqueueLocked(t)
		s.cond.Signal()
	} else {
		s.waiting[id] = t
	}
	waiting := len(s.waiting)
	s.mu.Unlock()

	s.logger.Debug("task submitted",
		"task_id", id,
		"priority", priority.String(),
		"dependency_count", len(t.dependencies),
		"waiting_count", waiting)
	return id, nil
}

// Cancel requests cancellation of a task. Pending and waiting tasks are
// cancelled immediately. For running tasks the body's context is cancelled
// and the result is discarded on return; cancellation of the body itself is
// cooperative. Returns false for unknown ids and tasks already terminal.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()

	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return false
	}

	switch t.state {
	case StatePending:
		s.ready.remove(t)
		delete(s.waiting, id)
		s.finalizeLocked(t, StateCancelled, nil, ErrCancelled)
		s.mu.Unlock()
		s.logger.Info("task cancelled", "task_id", id)
		return true
	case StateRunning:
		// The worker observes the state change and discards the result.
		t.state = StateCancelled
		cancel := t.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		s.logger.Info("cancelling running task", "task_id", id)
		return true
	default:
		s.mu.Unlock()
		return false
	}
}

// GetStatus returns a snapshot of the task's current state.
func (s *Scheduler) GetStatus(id string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return Snapshot{}, false
	}
	return t.snapshotLocked(), true
}

// AwaitResult blocks until the task reaches a terminal state or the context
// is done. It suspends the calling goroutine, never a worker. On completion
// it returns the task's result; for other terminal states it returns the
// recorded error (ErrCancelled, ErrTimeout, or the body's last error).
func (s *Scheduler) AwaitResult(ctx context.Context, id string) (any, error) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	done := t.done
	s.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t.state == StateCompleted {
		return t.result, nil
	}
	return nil, t.err
}

// GetStatistics returns a point-in-time view of queue counters, throughput,
// breaker state, and rate limiter tokens.
func (s *Scheduler) GetStatistics() QueueSnapshot {
	s.mu.Lock()
	snap := QueueSnapshot{
		QueueSize:    len(s.ready) + len(s.waiting),
		WaitingCount: len(s.waiting),
		RunningCount: s.running,
	}
	s.mu.Unlock()

	s.stats.fill(&snap)
	snap.CircuitBreakerState = s.breaker.State()
	snap.RateLimiterTokens = s.limiter.Tokens()
	return snap
}

// dependenciesMetLocked reports whether every dependency id is in the
// completed set. Caller must hold mu.
func (s *Scheduler) dependenciesMetLocked(t *Task) bool {
	for _, dep := range t.dependencies {
		if _, ok := s.completed[dep]; !ok {
			return false
		}
	}
	return true
}

// enqueueLocked pushes a task onto the ready heap with a fresh sequence
// number. Retried and rate-limited tasks keep their original priority but
// take a new position among equals, so they neither starve fresh
// submissions nor lose standing. Caller must hold mu.
func (s *Scheduler) enqueueLocked(t *Task) {
	t.enqueuedAt = time.Now()
	s.seq++
	s.ready.push(t, s.seq)
}

// promoteLocked moves every waiting task whose dependency set is now
// satisfied into the ready heap. Runs in the same critical section as the
// completion that triggered it. Caller must hold mu.
func (s *Scheduler) promoteLocked() {
	promoted := 0
	for id, t := range s.waiting {
		if s.dependenciesMetLocked(t) {
			delete(s.waiting, id)
			s.enqueueLocked(t)
			promoted++
		}
	}
	if promoted > 0 {
		s.cond.Broadcast()
	}
}

// finalizeLocked transitions a task to a terminal state, records statistics,
// unblocks awaiters, and promotes dependents on success. Caller must hold mu.
func (s *Scheduler) finalizeLocked(t *Task, state State, result any, err error) {
	t.state = state
	t.result = result
	t.err = err
	t.completedAt = time.Now()

	var duration time.Duration
	if !t.startedAt.IsZero() {
		duration = t.completedAt.Sub(t.startedAt)
	}
	s.stats.recordOutcome(state, duration)

	if state == StateCompleted {
		s.completed[t.id] = struct{}{}
		s.promoteLocked()
	}

	close(t.done)

	if s.observer != nil {
		snap := t.snapshotLocked()
		go s.observer(snap)
	}
}

// worker is one dequeue loop. It suspends on the condition variable while
// the ready heap is empty and exits when the scheduler stops.
func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("starting worker", "worker_id", id)
	for {
		t := s.nextReady()
		if t == nil {
			s.logger.Debug("stopping worker", "worker_id", id)
			return
		}
		s.execute(t, id)
	}
}

// nextReady blocks until a ready task is available or the scheduler stops,
// in which case it returns nil.
func (s *Scheduler) nextReady() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.stopped {
			return nil
		}
		if t := s.ready.pop(); t != nil {
			return t
		}
		s.cond.Wait()
	}
}

// execute runs a dequeued task through the circuit breaker and rate limiter
// gates, the concurrency semaphore, and the task body under its deadline,
// then routes the outcome. Every path that passes the breaker gate without
// recording an outcome must return the probe, or a half-open breaker would
// never leave that state.
func (s *Scheduler) execute(t *Task, workerID int) {
	logger := s.logger.With(
		"task_id", t.id,
		"worker_id", workerID,
		"priority", t.priority.String(),
	)

	// Breaker gate: a rejected attempt counts against the task's own retry
	// budget and records nothing on the breaker.
	if !s.breaker.Allow() {
		logger.Warn("circuit breaker open, skipping execution")
		s.routeFailure(t, ErrCircuitOpen, false, logger)
		return
	}

	// Rate limit gate: denial is not a failure. The task goes back to the
	// heap once a token will be available, freeing this worker.
	if !s.limiter.TryAcquire(1) {
		s.breaker.ReturnProbe()
		delay := s.limiter.Delay(1)
		logger.Debug("rate limited, requeueing task", "delay", delay)
		s.requeueAfter(t, delay)
		return
	}

	select {
	case s.sem <- struct{}{}:
	case <-s.baseCtx.Done():
		s.breaker.ReturnProbe()
		return
	}
	defer func() { <-s.sem }()

	timeout := t.timeout
	if timeout <= 0 {
		timeout = s.config.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(s.baseCtx, timeout)
	defer cancel()

	s.mu.Lock()
	if t.state != StatePending {
		// Cancelled between dequeue and dispatch.
		s.mu.Unlock()
		s.breaker.ReturnProbe()
		return
	}
	t.state = StateRunning
	t.startedAt = time.Now()
	t.cancel = cancel
	s.running++
	s.mu.Unlock()

	s.stats.recordAttempt()
	logger.Debug("executing task", "attempt", t.retries+1, "timeout", timeout)

	result, err := runBody(ctx, t.fn)

	s.mu.Lock()
	s.running--
	t.cancel = nil
	cancelled := t.state == StateCancelled

	switch {
	case cancelled:
		// Body ran past its point of no return or returned on its own;
		// either way the result is discarded.
		s.finalizeLocked(t, StateCancelled, nil, ErrCancelled)
		s.mu.Unlock()
		s.breaker.ReturnProbe()
		logger.Info("task cancelled, result discarded")

	case err == nil:
		s.finalizeLocked(t, StateCompleted, result, nil)
		s.mu.Unlock()
		s.breaker.RecordSuccess()
		logger.Info("task completed")

	case errors.Is(err, context.DeadlineExceeded):
		// Terminal: timeout is a policy decision for the caller, not an
		// automatic retry trigger.
		s.finalizeLocked(t, StateTimedOut, nil, fmt.Errorf("%w after %s", ErrTimeout, timeout))
		s.mu.Unlock()
		s.breaker.ReturnProbe()
		logger.Warn("task timed out", "timeout", timeout)

	case errors.Is(err, context.Canceled) && s.baseCtx.Err() != nil:
		// Scheduler shutdown, not a body failure.
		s.finalizeLocked(t, StateCancelled, nil, ErrCancelled)
		s.mu.Unlock()
		s.breaker.ReturnProbe()
		logger.Info("task cancelled by shutdown")

	default:
		s.mu.Unlock()
		s.breaker.RecordFailure()
		s.routeFailure(t, err, true, logger)
	}
}

// routeFailure retries a failed task with exponential backoff until its
// retry budget is exhausted, then marks it Failed with the last error.
func (s *Scheduler) routeFailure(t *Task, err error, executed bool, logger *slog.Logger) {
	s.mu.Lock()

	if t.state == StateCancelled {
		// Cancel won the race. A task cancelled while running has not been
		// finalized yet; one cancelled while pending already has.
		if executed {
			s.finalizeLocked(t, StateCancelled, nil, ErrCancelled)
		}
		s.mu.Unlock()
		return
	}

	if t.retries < t.maxRetries {
		t.retries++
		t.state = StatePending
		t.err = err
		attempt := t.retries
		maxRetries := t.maxRetries
		delay := s.backoff.Delay(attempt)
		s.mu.Unlock()

		logger.Warn("task failed, scheduling retry",
			"attempt", attempt,
			"max_retries", maxRetries,
			"delay", delay,
			"error", err)
		s.requeueAfter(t, delay)
		return
	}

	s.finalizeLocked(t, StateFailed, nil, err)
	s.mu.Unlock()
	logger.Error("task failed permanently",
		"retries", t.retries,
		"error", err)
}

// requeueAfter puts a pending task back on the ready heap after the given
// delay without holding a worker. The task is dropped if it was cancelled or
// the scheduler stopped in the meantime.
func (s *Scheduler) requeueAfter(t *Task, delay time.Duration) {
	requeue := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stopped || t.state != StatePending {
			return
		}
		s.enqueueLocked(t)
		s.cond.Signal()
	}

	if delay <= 0 {
		requeue()
		return
	}
	time.AfterFunc(delay, requeue)
}

// runBody executes the task function in its own goroutine so the deadline
// holds even when the body ignores its context. Panics are converted to
// errors; a failing task must never crash a worker.
func runBody(ctx context.Context, fn Func) (result any, err error) {
	type outcome struct {
		result any
		err    error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{nil, fmt.Errorf("task panicked: %v", r)}
			}
		}()
		res, err := fn(ctx)
		ch <- outcome{res, err}
	}()

	select {
	case out := <-ch:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
