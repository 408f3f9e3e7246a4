package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"

	"github.com/google/uuid"
)

// Effect is the body of a task. It performs its visual effect and returns once
// the effect's logical step has completed; a non-nil error reports a failed
// completion. Effects should honour ctx cancellation.
type Effect func(ctx context.Context, args ...any) error

// TaskID identifies a task in logs and execution history.
type TaskID = uuid.UUID

// GenerateTaskID returns a fresh random TaskID.
func GenerateTaskID() TaskID {
	return uuid.New()
}

// =============================================================================
// Tier: which queue of a PriorityScheduler a task belongs to
// =============================================================================

type Tier int

const (
	// TierLow: background work, several tasks may be in flight at once
	TierLow Tier = iota

	// TierHigh: serialized work that gates every new low tier start
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierHigh:
		return "high"
	default:
		return "unknown"
	}
}

// =============================================================================
// Task: an effect bound to its receiver and arguments
// =============================================================================

// Task is a deferred unit of work. Arguments and receiver are bound when the
// task is built, not when it runs.
type Task struct {
	ID       TaskID
	Name     string
	Receiver any
	Args     []any

	effect Effect
}

// NewTask binds effect to receiver and args. The args slice is copied.
func NewTask(name string, effect Effect, receiver any, args ...any) Task {
	return Task{
		ID:       GenerateTaskID(),
		Name:     name,
		Receiver: receiver,
		Args:     slices.Clone(args),
		effect:   effect,
	}
}

// Run invokes the effect. A panic is recovered and returned as *PanicError.
func (t Task) Run(ctx context.Context) (err error) {
	if t.effect == nil {
		return fmt.Errorf("task %s (%s): %w", t.ID, t.displayName(), ErrNilEffect)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{TaskID: t.ID, Value: rec, Stack: debug.Stack()}
		}
	}()

	if t.Receiver != nil {
		ctx = context.WithValue(ctx, receiverKey, t.Receiver)
	}
	return t.effect(ctx, t.Args...)
}

func (t Task) displayName() string {
	if t.Name == "" {
		return "anonymous"
	}
	return t.Name
}

// =============================================================================
// Context Helper
// =============================================================================
type receiverKeyType struct{}

var receiverKey receiverKeyType

// ReceiverFromContext returns the receiver bound to the running task, or nil.
func ReceiverFromContext(ctx context.Context) any {
	return ctx.Value(receiverKey)
}
