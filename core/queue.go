package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// QueueOptions configures a Queue.
type QueueOptions struct {
	Name string
	Tier Tier

	// MaxWorkers is the number of tasks that may be in flight at once.
	MaxWorkers int

	// Eager makes Push call Process immediately.
	Eager bool

	// Paused starts the queue paused.
	Paused bool

	// TaskTimeout releases a task's slot once it has been held this long.
	// Zero means a task holds its slot until its effect returns.
	TaskTimeout time.Duration

	// BaseContext is the parent of every task context. Defaults to context.Background().
	BaseContext context.Context

	Logger         Logger
	Metrics        Metrics
	FailureHandler FailureHandler
}

// Queue is a FIFO list of pending tasks plus a bounded number of worker slots.
//
// Every bookkeeping step (push, dispatch, completion) runs under one mutex, so
// scheduling decisions never interleave. Effects themselves run on their own
// goroutines and never hold the lock.
type Queue struct {
	name        string
	tier        Tier
	maxWorkers  int
	eager       bool
	taskTimeout time.Duration
	baseCtx     context.Context

	logger         Logger
	metrics        Metrics
	failureHandler FailureHandler

	mu      sync.Mutex
	pending taskFIFO
	active  int
	paused  bool
	started int64
	failed  int64

	history *executionHistory
}

// NewQueue creates a Queue. MaxWorkers must be in [1, 10000].
func NewQueue(opts QueueOptions) (*Queue, error) {
	if opts.MaxWorkers < 1 || opts.MaxWorkers > maxAllowedWorkers {
		return nil, fmt.Errorf("queue %q: max workers %d not in [1, %d]: %w",
			opts.Name, opts.MaxWorkers, maxAllowedWorkers, ErrInvalidMaxWorkers)
	}

	q := &Queue{
		name:           opts.Name,
		tier:           opts.Tier,
		maxWorkers:     opts.MaxWorkers,
		eager:          opts.Eager,
		taskTimeout:    opts.TaskTimeout,
		baseCtx:        opts.BaseContext,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		failureHandler: opts.FailureHandler,
		pending:        newTaskFIFO(),
		paused:         opts.Paused,
		history:        newExecutionHistory(defaultTaskHistoryCapacity),
	}
	if q.name == "" {
		q.name = q.tier.String()
	}
	if q.baseCtx == nil {
		q.baseCtx = context.Background()
	}
	if q.logger == nil {
		q.logger = NewNoOpLogger()
	}
	if q.metrics == nil {
		q.metrics = &NilMetrics{}
	}
	if q.failureHandler == nil {
		q.failureHandler = &LoggingFailureHandler{Logger: q.logger}
	}
	return q, nil
}

// Name returns the queue name used in logs and metrics.
func (q *Queue) Name() string { return q.name }

// MaxWorkers returns the concurrency ceiling.
func (q *Queue) MaxWorkers() int { return q.maxWorkers }

// Push appends task to the pending list. An eager queue then processes.
func (q *Queue) Push(task Task) {
	q.mu.Lock()
	q.pending.push(task)
	q.metrics.RecordQueueDepth(q.name, q.pending.len())
	q.mu.Unlock()

	if q.eager {
		q.Process()
	}
}

// Process starts as many pending tasks as there are free slots. The returned
// channel is closed once the cascade started by this call settles: every task
// it started has completed and the slots they freed found nothing more to
// start. A paused or empty queue, or one without free slots, returns an
// already closed channel.
func (q *Queue) Process() <-chan struct{} {
	c := newCascade()

	q.mu.Lock()
	q.dispatchLocked(c)
	c.settleIfIdleLocked()
	q.mu.Unlock()

	return c.done
}

// Pause stops new tasks from starting. In-flight tasks are not affected.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

// Resume clears the pause flag. It does not start anything; call Process.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
}

// Paused reports whether the queue is paused.
func (q *Queue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// WorkersAvailable reports whether a slot is free.
func (q *Queue) WorkersAvailable() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active < q.maxWorkers
}

// Len returns the number of pending, not yet started tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.len()
}

// Active returns the number of tasks in flight.
func (q *Queue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Idle reports whether nothing is pending and nothing is in flight.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.idleLocked()
}

func (q *Queue) idleLocked() bool {
	return q.pending.len() == 0 && q.active == 0
}

// Stats returns current observability data for this queue.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	stats := QueueStats{
		Name:       q.name,
		Tier:       q.tier,
		Pending:    q.pending.len(),
		Active:     q.active,
		MaxWorkers: q.maxWorkers,
		Paused:     q.paused,
		Started:    q.started,
		Failed:     q.failed,
	}
	q.mu.Unlock()

	if last, ok := q.history.Last(); ok {
		stats.LastTaskName = last.Name
		stats.LastTaskAt = last.FinishedAt
	}
	return stats
}

// RecentTasks returns completed task execution records in newest-first order.
func (q *Queue) RecentTasks(limit int) []TaskExecutionRecord {
	return q.history.Recent(limit)
}

// dispatchLocked starts pending tasks while slots are free, attributing each
// to cascade c.
func (q *Queue) dispatchLocked(c *cascade) {
	if q.paused {
		return
	}

	started := false
	for q.active < q.maxWorkers {
		task, ok := q.pending.pop()
		if !ok {
			break
		}
		q.active++
		q.started++
		c.inFlight++
		started = true
		go q.run(task, c)
	}

	if started {
		q.metrics.RecordQueueDepth(q.name, q.pending.len())
		q.metrics.RecordActiveWorkers(q.name, q.active)
	}
}

// run executes task on its own goroutine and hands the slot back.
func (q *Queue) run(task Task, c *cascade) {
	ctx, cancel := q.taskContext()
	defer cancel()

	startedAt := time.Now()
	err := q.execute(ctx, task)
	finishedAt := time.Now()

	var panicErr *PanicError
	record := TaskExecutionRecord{
		TaskID:     task.ID,
		Name:       task.displayName(),
		QueueName:  q.name,
		Tier:       q.tier,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startedAt),
		Failed:     err != nil,
		Panicked:   errors.As(err, &panicErr),
		TimedOut:   errors.Is(err, ErrTaskTimeout),
	}
	q.history.Add(record)
	q.metrics.RecordTaskDuration(q.name, q.tier, record.Duration)

	if err != nil {
		q.metrics.RecordTaskFailure(q.name, q.tier, failureReason(err))
		q.failureHandler.HandleTaskFailure(ctx, q.name, record, err)
	}

	q.complete(c, err != nil)
}

func (q *Queue) taskContext() (context.Context, context.CancelFunc) {
	if q.taskTimeout > 0 {
		return context.WithTimeout(q.baseCtx, q.taskTimeout)
	}
	return context.WithCancel(q.baseCtx)
}

// execute runs the task. With a task timeout the slot is given up when the
// deadline passes even if the effect has not returned yet.
func (q *Queue) execute(ctx context.Context, task Task) error {
	if q.taskTimeout <= 0 {
		return task.Run(ctx)
	}

	result := make(chan error, 1)
	go func() {
		result <- task.Run(ctx)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			q.logger.Warn("task abandoned after timeout",
				F("queue", q.name),
				F("task", task.displayName()),
				F("timeout", q.taskTimeout))
			return fmt.Errorf("task %s (%s) after %v: %w", task.ID, task.displayName(), q.taskTimeout, ErrTaskTimeout)
		}
		return ctx.Err()
	}
}

// complete releases a slot and lets the same cascade pick up the next task.
func (q *Queue) complete(c *cascade, failed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.active--
	if failed {
		q.failed++
	}
	q.metrics.RecordActiveWorkers(q.name, q.active)

	q.dispatchLocked(c)
	c.inFlight--
	c.settleIfIdleLocked()
}

// =============================================================================
// cascade: completion tracking for one Process call
// =============================================================================

// cascade counts the tasks started on behalf of a single Process call,
// including those started later in slots freed by its own tasks. It is only
// touched under the owning Queue's mutex.
type cascade struct {
	inFlight int
	done     chan struct{}
}

func newCascade() *cascade {
	return &cascade{done: make(chan struct{})}
}

func (c *cascade) settleIfIdleLocked() {
	if c.inFlight == 0 {
		close(c.done)
	}
}
