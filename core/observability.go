package core

import "time"

// TaskRecord captures a finished task invocation.
type TaskRecord struct {
	TaskID     TaskID
	Name       string
	Owner      string
	State      TaskState
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Switches   int
	Err        string
}

// WorkerStats represents runtime observability state for a single-flight worker.
type WorkerStats struct {
	Name         string
	Pending      int
	Running      bool
	Closed       bool
	Incarnations int
}

// LoopStats represents runtime observability state for a foreground loop.
type LoopStats struct {
	Name     string
	Pending  int
	Running  bool
	Rejected int64
	Closed   bool
	Panics   int64
}

// OwnerStats represents the scheduler state attached to one owner.
type OwnerStats struct {
	Owner        string
	InBackground int
	Queued       int
	Worker       WorkerStats
}
