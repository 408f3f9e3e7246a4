package core

import "time"

// TaskExecutionRecord captures a completed task execution event.
type TaskExecutionRecord struct {
	TaskID     TaskID
	Name       string
	QueueName  string
	Tier       Tier
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Failed     bool
	Panicked   bool
	TimedOut   bool
}

// QueueStats represents runtime observability state for a queue.
type QueueStats struct {
	Name         string
	Tier         Tier
	Pending      int
	Active       int
	MaxWorkers   int
	Paused       bool
	Started      int64
	Failed       int64
	LastTaskName string
	LastTaskAt   time.Time
}

// SchedulerStats represents runtime observability state for a PriorityScheduler.
type SchedulerStats struct {
	ID       string
	Phase    Phase
	Locked   bool
	Rejected int64
	High     QueueStats
	Low      QueueStats
}
