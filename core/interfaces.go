package core

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// FailureHandler: Interface for observing failed tasks
// =============================================================================

// FailureHandler is called when a task completes with an error, panics, or
// times out. Failures are contained: the queue always moves on to the next
// pending task after the handler returns.
//
// Implementations should be thread-safe as they may be called concurrently.
type FailureHandler interface {
	// HandleTaskFailure is called before the slot of the failed task is
	// released, so it should return quickly.
	//
	// Parameters:
	// - ctx: The context the task ran with
	// - queueName: The name of the queue that ran the task
	// - record: The execution record of the task
	// - err: The failure reported by the task
	HandleTaskFailure(ctx context.Context, queueName string, record TaskExecutionRecord, err error)
}

// LoggingFailureHandler logs task failures through a Logger.
type LoggingFailureHandler struct {
	Logger Logger
}

// HandleTaskFailure logs the failure, including the stack for panics.
func (h *LoggingFailureHandler) HandleTaskFailure(ctx context.Context, queueName string, record TaskExecutionRecord, err error) {
	fields := []Field{
		F("queue", queueName),
		F("task", record.Name),
		F("task_id", record.TaskID.String()),
		F("duration", record.Duration),
		F("error", err),
	}

	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		fields = append(fields, F("stack", string(panicErr.Stack)))
	}
	h.Logger.Warn("task failed", fields...)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting scheduler metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast; they are called while scheduling.
type Metrics interface {
	// RecordTaskDuration records how long a task held its slot.
	RecordTaskDuration(queueName string, tier Tier, duration time.Duration)

	// RecordTaskFailure records a failed, panicked or timed out task.
	// reason is one of "error", "panic" or "timeout".
	RecordTaskFailure(queueName string, tier Tier, reason string)

	// RecordQueueDepth records the number of pending tasks.
	RecordQueueDepth(queueName string, depth int)

	// RecordActiveWorkers records the number of occupied slots.
	RecordActiveWorkers(queueName string, active int)

	// RecordProcessRejected records a Process call rejected by a locked scheduler.
	RecordProcessRejected(schedulerID string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(queueName string, tier Tier, duration time.Duration) {}
func (m *NilMetrics) RecordTaskFailure(queueName string, tier Tier, reason string)         {}
func (m *NilMetrics) RecordQueueDepth(queueName string, depth int)                         {}
func (m *NilMetrics) RecordActiveWorkers(queueName string, active int)                     {}
func (m *NilMetrics) RecordProcessRejected(schedulerID string, reason string)              {}

// failureReason maps a task error onto the label used by RecordTaskFailure.
func failureReason(err error) string {
	var panicErr *PanicError
	switch {
	case errors.As(err, &panicErr):
		return "panic"
	case errors.Is(err, ErrTaskTimeout):
		return "timeout"
	default:
		return "error"
	}
}

// =============================================================================
// RejectedHandler: Interface for handling rejected Process calls
// =============================================================================

// RejectedHandler is called when a scheduler refuses to process because it is
// locked. This happens for explicit Process calls and for the implicit Process
// triggered by PushHighPriority.
type RejectedHandler interface {
	HandleRejected(schedulerID string, reason string)
}

// LoggingRejectedHandler logs rejected process attempts at debug level.
type LoggingRejectedHandler struct {
	Logger Logger
}

func (h *LoggingRejectedHandler) HandleRejected(schedulerID string, reason string) {
	h.Logger.Debug("process rejected", F("scheduler", schedulerID), F("reason", reason))
}

// =============================================================================
// SchedulerConfig: Configuration for PriorityScheduler
// =============================================================================

const (
	// DefaultLowMaxWorkers is the low tier concurrency used when none is configured.
	DefaultLowMaxWorkers = 10

	// maxAllowedWorkers bounds per-queue concurrency.
	maxAllowedWorkers = 10000
)

// SchedulerConfig holds configuration options for PriorityScheduler.
// All handlers are optional; if not provided, default implementations will be used.
type SchedulerConfig struct {
	// ID names the scheduler in logs and metrics. Defaults to a random uuid.
	ID string

	// LowMaxWorkers is the number of low priority tasks that may be in flight
	// at once. Zero means DefaultLowMaxWorkers.
	LowMaxWorkers int

	// TaskTimeout bounds how long any task may hold a slot. Zero disables it.
	TaskTimeout time.Duration

	Logger          Logger
	Metrics         Metrics
	FailureHandler  FailureHandler
	RejectedHandler RejectedHandler
}

// DefaultSchedulerConfig returns a config with default handlers.
func DefaultSchedulerConfig() SchedulerConfig {
	logger := NewDefaultLogger()
	return SchedulerConfig{
		LowMaxWorkers:   DefaultLowMaxWorkers,
		Logger:          logger,
		Metrics:         &NilMetrics{},
		FailureHandler:  &LoggingFailureHandler{Logger: logger},
		RejectedHandler: &LoggingRejectedHandler{Logger: logger},
	}
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.ID == "" {
		c.ID = GenerateTaskID().String()
	}
	if c.LowMaxWorkers == 0 {
		c.LowMaxWorkers = DefaultLowMaxWorkers
	}
	if c.Logger == nil {
		c.Logger = NewDefaultLogger()
	}
	if c.Metrics == nil {
		c.Metrics = &NilMetrics{}
	}
	if c.FailureHandler == nil {
		c.FailureHandler = &LoggingFailureHandler{Logger: c.Logger}
	}
	if c.RejectedHandler == nil {
		c.RejectedHandler = &LoggingRejectedHandler{Logger: c.Logger}
	}
	return c
}
