// Package choreo plays event-driven visual effects through a two-tier
// priority scheduler.
//
// Events arrive from a transport (MQTT or HTTP long-poll) and are turned into
// effects: a marker flashes the stage, a series loads images, a reveal
// uncovers a share of the image tiles. Flashes and image loads are urgent and
// go to a high priority queue that runs one task at a time. Reveals go to a
// low priority queue that runs up to ten at once but never starts while high
// priority work is outstanding.
//
// # Quick Start
//
//	sched, err := choreo.NewPriorityScheduler(choreo.SchedulerConfig{})
//	if err != nil {
//		return err
//	}
//	sched.PushHighPriority("flash", flash, nil, "#e55d87")
//	sched.PushLowPriority("reveal", reveal, nil, 0.1) // waits for the flash
//
// # Key Concepts
//
// Queue: a FIFO of tasks with a bounded number of slots. Process starts tasks
// while slots are free; every completion frees its slot and starts the next
// task. The channel Process returns closes when all of that has settled.
//
// PriorityScheduler: a high queue with one slot and a low queue with
// LowMaxWorkers slots. Pushing high priority work pauses the low queue until
// the high queue has fully drained.
//
// Lock: a locked scheduler refuses Process, so queued work stays queued.
// Flush still drains the low queue, which is how a round is ended.
//
// Session: the per-round glue in package stage that maps events to effects
// on a Surface.
package choreo
