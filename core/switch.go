package core

import "fmt"

// switchRequest is what a task body yields to its driver.
type switchRequest int

const (
	requestBackground switchRequest = iota + 1
	requestForeground
	requestIsForeground
)

func (r switchRequest) String() string {
	switch r {
	case requestBackground:
		return "go-background"
	case requestForeground:
		return "go-foreground"
	case requestIsForeground:
		return "query-am-i-foreground"
	default:
		return fmt.Sprintf("switchRequest(%d)", int(r))
	}
}

// Side is the kind of execution context a task segment runs on.
type Side int

const (
	SideForeground Side = iota
	SideBackground
)

func (s Side) String() string {
	if s == SideBackground {
		return "background"
	}
	return "foreground"
}

// TaskState is the scheduler's view of a task.
type TaskState int

const (
	TaskStateForegroundRunning TaskState = iota
	TaskStateBackgroundPending
	TaskStateBackgroundRunning
	TaskStateAwaitingForeground
	TaskStateCompleted
	TaskStateFailed
	TaskStateShuttingDown
	// TaskStateCancelled is the terminal state of a task unwound by the
	// interruption delivered during owner cleanup.
	TaskStateCancelled
)

var taskStateNames = [...]string{
	TaskStateForegroundRunning:  "foreground-running",
	TaskStateBackgroundPending:  "background-pending",
	TaskStateBackgroundRunning:  "background-running",
	TaskStateAwaitingForeground: "awaiting-foreground",
	TaskStateCompleted:          "completed",
	TaskStateFailed:             "failed",
	TaskStateShuttingDown:       "shutting-down",
	TaskStateCancelled:          "cancelled",
}

func (s TaskState) String() string {
	if s >= 0 && int(s) < len(taskStateNames) {
		return taskStateNames[s]
	}
	return fmt.Sprintf("TaskState(%d)", int(s))
}

// Terminal reports whether no further transitions can happen.
func (s TaskState) Terminal() bool {
	return s == TaskStateCompleted || s == TaskStateFailed || s == TaskStateCancelled
}
