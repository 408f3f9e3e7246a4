package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMaxWorkers is returned when a queue is configured with a
	// worker limit outside [1, maxAllowedWorkers].
	ErrInvalidMaxWorkers = errors.New("invalid max workers")

	// ErrSchedulerLocked is returned by Process while the scheduler is locked.
	// Queued tasks are kept; they run after Unlock and a later Process.
	ErrSchedulerLocked = errors.New("scheduler locked")

	// ErrTaskTimeout is reported for a task that held its slot past the
	// queue's task timeout.
	ErrTaskTimeout = errors.New("task timed out")

	// ErrNilEffect is reported when a task was built without an effect.
	ErrNilEffect = errors.New("nil effect")
)

// PanicError carries a panic recovered from a task's effect.
type PanicError struct {
	TaskID TaskID
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %s panicked: %v", e.TaskID, e.Value)
}
