package choreo

import (
	"github.com/Swind/choreo/core"
	"github.com/Swind/choreo/stage"
)

// Re-export commonly used types from core package for convenience.
// This allows users to import only the choreo package for most use cases.

// Effect is the unit of work carried by a Task
type Effect = core.Effect

// Task is an effect bound to its receiver and arguments
type Task = core.Task

// TaskID identifies a pushed task
type TaskID = core.TaskID

// Queue is a FIFO with a bounded number of concurrent slots
type Queue = core.Queue

// QueueOptions configures a Queue
type QueueOptions = core.QueueOptions

// PriorityScheduler coordinates the high and low priority queues
type PriorityScheduler = core.PriorityScheduler

// SchedulerConfig configures a PriorityScheduler
type SchedulerConfig = core.SchedulerConfig

// Phase is the scheduler's coordination state
type Phase = core.Phase

// Tier names a queue's priority
type Tier = core.Tier

const (
	PhaseIdle               = core.PhaseIdle
	PhaseHighPriorityActive = core.PhaseHighPriorityActive

	TierLow  = core.TierLow
	TierHigh = core.TierHigh
)

// Sentinel errors
var (
	ErrSchedulerLocked   = core.ErrSchedulerLocked
	ErrInvalidMaxWorkers = core.ErrInvalidMaxWorkers
	ErrTaskTimeout       = core.ErrTaskTimeout
)

// NewTask binds effect to receiver and args.
func NewTask(name string, effect Effect, receiver any, args ...any) Task {
	return core.NewTask(name, effect, receiver, args...)
}

// NewQueue creates a queue.
func NewQueue(opts QueueOptions) (*Queue, error) {
	return core.NewQueue(opts)
}

// NewPriorityScheduler creates a scheduler with a one-slot high queue and a
// low queue of cfg.LowMaxWorkers slots.
func NewPriorityScheduler(cfg SchedulerConfig) (*PriorityScheduler, error) {
	return core.NewPriorityScheduler(cfg)
}

// NewSession creates a scheduler from cfg and a session driving surface
// through it.
func NewSession(surface stage.Surface, cfg SchedulerConfig, opts stage.SessionOptions) (*stage.Session, error) {
	sched, err := core.NewPriorityScheduler(cfg)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = cfg.Logger
	}
	return stage.NewSession(sched, surface, opts)
}

// ReceiverFromContext returns the receiver bound to the running task
var ReceiverFromContext = core.ReceiverFromContext

// NewNoOpLogger returns a logger that discards everything
var NewNoOpLogger = core.NewNoOpLogger

// DefaultSchedulerConfig returns a config with logging handlers
var DefaultSchedulerConfig = core.DefaultSchedulerConfig
