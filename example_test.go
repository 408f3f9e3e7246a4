package choreo_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/Swind/choreo"
)

// ExamplePriorityScheduler shows low priority work waiting for high priority work.
func ExamplePriorityScheduler() {
	sched, err := choreo.NewPriorityScheduler(choreo.SchedulerConfig{
		LowMaxWorkers: 1,
		Logger:        choreo.NewNoOpLogger(),
	})
	if err != nil {
		panic(err)
	}

	done := make(chan struct{})

	sched.PushHighPriority("load", func(ctx context.Context, args ...any) error {
		fmt.Println("load", args[0])
		return nil
	}, nil, "series1")

	sched.PushLowPriority("reveal", func(ctx context.Context, args ...any) error {
		fmt.Println("reveal", args[0])
		close(done)
		return nil
	}, nil, 0.1)

	<-done

	// Output:
	// load series1
	// reveal 0.1
}

// ExamplePriorityScheduler_Lock shows that a locked scheduler refuses to process.
func ExamplePriorityScheduler_Lock() {
	sched, _ := choreo.NewPriorityScheduler(choreo.SchedulerConfig{Logger: choreo.NewNoOpLogger()})

	sched.Lock()
	_, err := sched.Process()
	fmt.Println(errors.Is(err, choreo.ErrSchedulerLocked))

	sched.Unlock()
	done, err := sched.Process()
	<-done
	fmt.Println(err)

	// Output:
	// true
	// <nil>
}

// ExampleQueue shows a one slot queue draining in FIFO order.
func ExampleQueue() {
	q, _ := choreo.NewQueue(choreo.QueueOptions{Name: "demo", MaxWorkers: 1})

	step := func(ctx context.Context, args ...any) error {
		fmt.Println("task", args[0])
		return nil
	}
	for i := 1; i <= 3; i++ {
		q.Push(choreo.NewTask("step", step, nil, i))
	}
	<-q.Process()

	// Output:
	// task 1
	// task 2
	// task 3
}
