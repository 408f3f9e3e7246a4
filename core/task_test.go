package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	core "github.com/Swind/choreo/core"
)

// TestTaskID_Generate verifies TaskID generation
// Given: two generated TaskIDs
// When: they are compared
// Then: both are non-zero and distinct
func TestTaskID_Generate(t *testing.T) {
	// Act
	a := core.GenerateTaskID()
	b := core.GenerateTaskID()

	// Assert
	var zero core.TaskID
	if a == zero || b == zero {
		t.Fatal("generated TaskID should not be zero")
	}
	if a == b {
		t.Fatalf("generated TaskIDs collide: %s", a)
	}
}

// TestTask_ArgsBoundAtConstruction verifies argument capture
// Given: a task built from a slice that is mutated afterwards
// When: the task runs
// Then: it sees the values from construction time
func TestTask_ArgsBoundAtConstruction(t *testing.T) {
	// Arrange
	args := []any{"series1", 0.1}
	var got []any
	task := core.NewTask("capture", func(ctx context.Context, a ...any) error {
		got = a
		return nil
	}, nil, args...)
	args[0] = "mutated"

	// Act
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	// Assert
	if got[0] != "series1" || got[1] != 0.1 {
		t.Errorf("args = %v, want [series1 0.1]", got)
	}
}

// TestTask_ReceiverFromContext verifies extracting the receiver inside an effect
// Given: a plain context and a task bound to a receiver
// When: ReceiverFromContext is called
// Then: it returns nil for the plain context and the receiver while the task runs
func TestTask_ReceiverFromContext(t *testing.T) {
	// Arrange, Act and Assert - plain context
	if got := core.ReceiverFromContext(context.Background()); got != nil {
		t.Fatalf("ReceiverFromContext(background) = %#v, want nil", got)
	}

	// Arrange
	type surface struct{ name string }
	recv := &surface{name: "stage"}
	var seen any
	task := core.NewTask("recv", func(ctx context.Context, _ ...any) error {
		seen = core.ReceiverFromContext(ctx)
		return nil
	}, recv)

	// Act
	_ = task.Run(context.Background())

	// Assert
	if seen != recv {
		t.Fatalf("receiver = %#v, want %#v", seen, recv)
	}
}

// TestTask_PanicIsRecovered verifies panic containment
// Given: an effect that panics
// When: the task runs
// Then: Run returns a *PanicError carrying the value and a stack
func TestTask_PanicIsRecovered(t *testing.T) {
	// Arrange
	task := core.NewTask("boom", func(ctx context.Context, _ ...any) error {
		panic("boom")
	}, nil)

	// Act
	err := task.Run(context.Background())

	// Assert
	var panicErr *core.PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("err = %v, want *PanicError", err)
	}
	if panicErr.Value != "boom" || panicErr.TaskID != task.ID {
		t.Errorf("panic error = %+v", panicErr)
	}
	if len(panicErr.Stack) == 0 {
		t.Error("panic error should carry a stack")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("Error() = %q, want the panic value", err.Error())
	}
}

// TestTask_NilEffect verifies a task without an effect fails instead of panicking
func TestTask_NilEffect(t *testing.T) {
	task := core.NewTask("empty", nil, nil)
	if err := task.Run(context.Background()); !errors.Is(err, core.ErrNilEffect) {
		t.Fatalf("err = %v, want ErrNilEffect", err)
	}
}

func TestTier_String(t *testing.T) {
	cases := map[core.Tier]string{
		core.TierLow:  "low",
		core.TierHigh: "high",
		core.Tier(7):  "unknown",
	}
	for tier, want := range cases {
		if got := tier.String(); got != want {
			t.Errorf("Tier(%d).String() = %q, want %q", int(tier), got, want)
		}
	}
}
