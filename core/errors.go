package core

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkerClosed is returned by SingleFlightWorker.Submit after Close.
	ErrWorkerClosed = errors.New("worker is closed")

	// ErrTaskInterrupted is delivered at a task's switch points once its owner
	// is being cleaned up. Task bodies may catch it to finish non-foreground work.
	ErrTaskInterrupted = errors.New("task interrupted")

	// ErrLoopClosed is returned by ForegroundLoop operations after shutdown.
	ErrLoopClosed = errors.New("foreground loop is closed")
)

// PanicError carries a value recovered from a panic together with the stack
// of the goroutine that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// TaskError is raised on the foreground when a task fails. It records the
// kind and message of the original failure and, for panics, the stack of the
// goroutine the task body was running on.
type TaskError struct {
	TaskID   TaskID
	TaskName string
	Owner    string
	Kind     string
	Message  string
	Stack    []byte
	Err      error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q on %s failed: %s: %s", e.TaskName, e.Owner, e.Kind, e.Message)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

func newTaskError(task *Task, owner string, err error) *TaskError {
	te := &TaskError{
		TaskID:   task.id,
		TaskName: task.name,
		Owner:    owner,
		Kind:     fmt.Sprintf("%T", err),
		Message:  err.Error(),
		Err:      err,
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		te.Kind = fmt.Sprintf("panic(%T)", pe.Value)
		te.Message = fmt.Sprint(pe.Value)
		te.Stack = pe.Stack
	}
	return te
}

func interruptedError(owner string) error {
	return fmt.Errorf("%w: destroying owner %q", ErrTaskInterrupted, owner)
}
