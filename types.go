package threadhop

import "github.com/Swind/go-threadhop/core"

// Re-export commonly used types from core package for convenience.

// Task is the handle a task body uses to switch sides.
type Task = core.Task

// TaskFunc is a task body.
type TaskFunc = core.TaskFunc

// TaskID identifies a started task
type TaskID = core.TaskID

// TaskState is the lifecycle state of a task
type TaskState = core.TaskState

// TaskError reports a task body failure
type TaskError = core.TaskError

// TaskRecord is a finished task kept in the registry history
type TaskRecord = core.TaskRecord

// Owner is the unit tasks are grouped and cleaned up by
type Owner = core.Owner

// Dispatcher posts callbacks to an owner's foreground
type Dispatcher = core.Dispatcher

// DispatcherFunc adapts a function to Dispatcher
type DispatcherFunc = core.DispatcherFunc

// Registry tracks the scheduler state of every owner
type Registry = core.Registry

// RegistryConfig configures a Registry
type RegistryConfig = core.RegistryConfig

// ForegroundLoop is a dedicated goroutine usable as a foreground context
type ForegroundLoop = core.ForegroundLoop

// SingleFlightWorker runs jobs one at a time on a goroutine that exits when idle
type SingleFlightWorker = core.SingleFlightWorker

// TaskWithResult and ReplyWithResult for generic PostTaskAndReply pattern
type TaskWithResult[T any] = core.TaskWithResult[T]
type ReplyWithResult[T any] = core.ReplyWithResult[T]

// Task state constants
const (
	TaskStateForegroundRunning  = core.TaskStateForegroundRunning
	TaskStateBackgroundPending  = core.TaskStateBackgroundPending
	TaskStateBackgroundRunning  = core.TaskStateBackgroundRunning
	TaskStateAwaitingForeground = core.TaskStateAwaitingForeground
	TaskStateCompleted          = core.TaskStateCompleted
	TaskStateFailed             = core.TaskStateFailed
	TaskStateShuttingDown       = core.TaskStateShuttingDown
	TaskStateCancelled          = core.TaskStateCancelled
)

// Errors
var (
	ErrTaskInterrupted = core.ErrTaskInterrupted
	ErrWorkerClosed    = core.ErrWorkerClosed
	ErrLoopClosed      = core.ErrLoopClosed
)

// Constructors
var (
	NewRegistry           = core.NewRegistry
	DefaultRegistryConfig = core.DefaultRegistryConfig
	NewForegroundLoop     = core.NewForegroundLoop
	NewSingleFlightWorker = core.NewSingleFlightWorker
)

// Options
var (
	WithLoopName     = core.WithLoopName
	WithPanicHandler = core.WithPanicHandler
	WithIdleTimeout  = core.WithIdleTimeout
)
