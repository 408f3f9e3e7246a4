package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Phase is the coordination state of a PriorityScheduler.
type Phase int

const (
	// PhaseIdle: no high priority work outstanding, the low queue may start tasks.
	// A scheduler that was never used is also idle.
	PhaseIdle Phase = iota

	// PhaseHighPriorityActive: high priority work is pending or running and the
	// low queue is paused.
	PhaseHighPriorityActive
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseHighPriorityActive:
		return "high_priority_active"
	default:
		return "unknown"
	}
}

// PriorityScheduler coordinates a high and a low priority Queue. High priority
// tasks run one at a time in push order, and while any is outstanding no new
// low priority task starts. Low priority tasks already in flight are never
// interrupted.
type PriorityScheduler struct {
	id   string
	high *Queue
	low  *Queue

	logger          Logger
	metrics         Metrics
	rejectedHandler RejectedHandler

	// mu guards locked and phase, and is held across the queue calls that must
	// observe them atomically. Lock order: scheduler before queue.
	mu     sync.Mutex
	locked bool
	phase  Phase

	rejected atomic.Int64
}

// NewPriorityScheduler creates the two queues: high with a single worker, low
// with cfg.LowMaxWorkers workers. Neither queue is eager; the scheduler
// decides when they process.
func NewPriorityScheduler(cfg SchedulerConfig) (*PriorityScheduler, error) {
	return NewPrioritySchedulerWithContext(context.Background(), cfg)
}

// NewPrioritySchedulerWithContext is NewPriorityScheduler with ctx as the parent
// of every task context. Cancelling ctx cancels the contexts of running effects.
func NewPrioritySchedulerWithContext(ctx context.Context, cfg SchedulerConfig) (*PriorityScheduler, error) {
	cfg = cfg.withDefaults()

	high, err := NewQueue(QueueOptions{
		Name:           cfg.ID + "/high",
		Tier:           TierHigh,
		MaxWorkers:     1,
		TaskTimeout:    cfg.TaskTimeout,
		BaseContext:    ctx,
		Logger:         cfg.Logger,
		Metrics:        cfg.Metrics,
		FailureHandler: cfg.FailureHandler,
	})
	if err != nil {
		return nil, fmt.Errorf("create high priority queue: %w", err)
	}

	low, err := NewQueue(QueueOptions{
		Name:           cfg.ID + "/low",
		Tier:           TierLow,
		MaxWorkers:     cfg.LowMaxWorkers,
		TaskTimeout:    cfg.TaskTimeout,
		BaseContext:    ctx,
		Logger:         cfg.Logger,
		Metrics:        cfg.Metrics,
		FailureHandler: cfg.FailureHandler,
	})
	if err != nil {
		return nil, fmt.Errorf("create low priority queue: %w", err)
	}

	return &PriorityScheduler{
		id:              cfg.ID,
		high:            high,
		low:             low,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		rejectedHandler: cfg.RejectedHandler,
	}, nil
}

// ID returns the scheduler id.
func (s *PriorityScheduler) ID() string { return s.id }

// PushHighPriority queues effect on the high queue and pauses the low queue.
// If the high queue has a free slot the scheduler processes right away; a
// rejection because the scheduler is locked goes to the RejectedHandler and
// the task stays queued.
func (s *PriorityScheduler) PushHighPriority(name string, effect Effect, receiver any, args ...any) TaskID {
	task := NewTask(name, effect, receiver, args...)

	s.mu.Lock()
	if s.phase != PhaseHighPriorityActive {
		s.logger.Debug("high priority work outstanding", F("scheduler", s.id), F("task", task.displayName()))
	}
	s.phase = PhaseHighPriorityActive
	s.low.Pause()
	s.high.Push(task)
	free := s.high.WorkersAvailable()
	s.mu.Unlock()

	if free {
		// A locked scheduler has already reported the rejection.
		_, _ = s.Process()
	}
	return task.ID
}

// PushLowPriority queues effect on the low queue. It starts right away only
// when no high priority work is outstanding, the scheduler is unlocked and a
// low slot is free; otherwise it waits for a later Process.
func (s *PriorityScheduler) PushLowPriority(name string, effect Effect, receiver any, args ...any) TaskID {
	task := NewTask(name, effect, receiver, args...)

	s.mu.Lock()
	s.low.Push(task)
	start := !s.locked && s.phase == PhaseIdle && s.low.WorkersAvailable()
	s.mu.Unlock()

	if start {
		s.low.Process()
	}
	return task.ID
}

// Process runs the coordination step. A locked scheduler returns
// ErrSchedulerLocked. With no high priority work outstanding the low queue is
// resumed and processed. Otherwise the high queue is processed; once that
// cascade settles and the high queue is drained, the scheduler goes idle,
// resumes the low queue and processes it. The returned channel closes when
// all of that has settled.
func (s *PriorityScheduler) Process() (<-chan struct{}, error) {
	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		s.reject("locked")
		return nil, ErrSchedulerLocked
	}
	if s.phase == PhaseIdle {
		s.low.Resume()
		s.mu.Unlock()
		return s.low.Process(), nil
	}
	s.mu.Unlock()

	highDone := s.high.Process()
	done := make(chan struct{})
	go s.afterHigh(highDone, done)
	return done, nil
}

// afterHigh finishes a high priority cascade. The transition to idle only
// happens if the high queue is fully drained: a high priority task pushed
// while the cascade was settling keeps the low queue paused.
func (s *PriorityScheduler) afterHigh(highDone <-chan struct{}, done chan struct{}) {
	defer close(done)
	<-highDone

	s.mu.Lock()
	if s.phase != PhaseHighPriorityActive || !s.high.Idle() {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseIdle
	s.low.Resume()
	locked := s.locked
	s.mu.Unlock()

	s.logger.Debug("high priority work drained", F("scheduler", s.id), F("low_pending", s.low.Len()))
	if locked {
		return
	}
	<-s.low.Process()
}

// Lock makes Process fail until Unlock. Queued tasks are kept and pushes are
// still accepted.
func (s *PriorityScheduler) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = true
}

// Unlock re-enables Process. It does not process by itself.
func (s *PriorityScheduler) Unlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = false
}

// Locked reports whether the scheduler is locked.
func (s *PriorityScheduler) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// Flush processes the low queue and waits for that cascade to settle, or for
// ctx to end. Running tasks are never aborted. A paused or empty low queue
// returns immediately. Flush is not gated by Lock.
func (s *PriorityScheduler) Flush(ctx context.Context) error {
	select {
	case <-s.low.Process():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush %s: %w", s.id, ctx.Err())
	}
}

// Busy reports whether high priority work is outstanding.
func (s *PriorityScheduler) Busy() bool {
	return s.Phase() == PhaseHighPriorityActive
}

// Phase returns the current coordination state.
func (s *PriorityScheduler) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Stats returns current observability data for the scheduler and its queues.
func (s *PriorityScheduler) Stats() SchedulerStats {
	s.mu.Lock()
	phase, locked := s.phase, s.locked
	s.mu.Unlock()

	return SchedulerStats{
		ID:       s.id,
		Phase:    phase,
		Locked:   locked,
		Rejected: s.rejected.Load(),
		High:     s.high.Stats(),
		Low:      s.low.Stats(),
	}
}

// High returns stats of the high priority queue.
func (s *PriorityScheduler) High() QueueStats { return s.high.Stats() }

// Low returns stats of the low priority queue.
func (s *PriorityScheduler) Low() QueueStats { return s.low.Stats() }

// RecentTasks returns completed executions of one tier, newest first.
func (s *PriorityScheduler) RecentTasks(tier Tier, limit int) []TaskExecutionRecord {
	if tier == TierHigh {
		return s.high.RecentTasks(limit)
	}
	return s.low.RecentTasks(limit)
}

func (s *PriorityScheduler) reject(reason string) {
	s.rejected.Add(1)
	s.metrics.RecordProcessRejected(s.id, reason)
	s.rejectedHandler.HandleRejected(s.id, reason)
}
