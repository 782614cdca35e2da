package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// TaskFunc is a task body. It runs as straight-line code and moves between
// the foreground and the owner's worker with the switch methods of t.
type TaskFunc func(t *Task) error

// Task is the handle a task body uses to switch sides.
//
// The methods must only be called from the body they were passed to.
type Task struct {
	id    TaskID
	name  string
	owner Owner
	co    *coroutine
}

// ID returns the unique identifier of this invocation.
func (t *Task) ID() TaskID { return t.id }

// Name returns the task name given to Start.
func (t *Task) Name() string { return t.name }

// Owner returns the owner the task is attached to.
func (t *Task) Owner() Owner { return t.owner }

// Background moves the body to the owner's worker. It is a no-op when the
// body already runs there. After the owner is cleaned up it returns an error
// wrapping ErrTaskInterrupted instead.
func (t *Task) Background() error {
	return t.co.yield(requestBackground).err
}

// Foreground moves the body to the owner's dispatcher. It is a no-op when the
// body already runs there. After the owner is cleaned up it returns an error
// wrapping ErrTaskInterrupted instead.
func (t *Task) Foreground() error {
	return t.co.yield(requestForeground).err
}

// IsForeground reports the side the body runs on. It never switches. During
// owner cleanup it reports true, since cleanup completes on the foreground.
func (t *Task) IsForeground() bool {
	return t.co.yield(requestIsForeground).foreground
}

// InBackground runs fn on the worker and returns to the foreground afterwards
// if that is where the body started.
func (t *Task) InBackground(fn func() error) error {
	wasForeground := t.IsForeground()
	if err := t.Background(); err != nil {
		return err
	}
	err := fn()
	if wasForeground {
		if serr := t.Foreground(); err == nil {
			err = serr
		}
	}
	return err
}

// InForeground runs fn on the dispatcher and returns to the worker afterwards
// if that is where the body started.
func (t *Task) InForeground(fn func() error) error {
	wasForeground := t.IsForeground()
	if err := t.Foreground(); err != nil {
		return err
	}
	err := fn()
	if !wasForeground {
		if serr := t.Background(); err == nil {
			err = serr
		}
	}
	return err
}

// taskInProgress drives one Task. Its continuations are the only code that
// resumes the body; each runs on the side its name says.
type taskInProgress struct {
	reg     *Registry
	backend *ownerBackend
	task    *Task

	// shuttingDown is set on the foreground by cleanup.
	shuttingDown atomic.Bool

	mu        sync.Mutex
	state     TaskState
	switches  int
	failure   error
	startedAt time.Time
}

func newTaskInProgress(reg *Registry, b *ownerBackend, name string, body TaskFunc) *taskInProgress {
	t := &Task{
		id:    GenerateTaskID(),
		name:  name,
		owner: b.owner,
	}
	t.co = newCoroutine(func() error { return body(t) })
	return &taskInProgress{
		reg:       reg,
		backend:   b,
		task:      t,
		state:     TaskStateForegroundRunning,
		startedAt: time.Now(),
	}
}

func (p *taskInProgress) setState(s TaskState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// State returns the current scheduler state.
func (p *taskInProgress) State() TaskState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *taskInProgress) markSwitch(to Side) {
	p.mu.Lock()
	p.switches++
	p.mu.Unlock()
	p.reg.metrics.RecordTaskSwitch(p.backend.name, to)
}

// foregroundContinuation resumes the body on the foreground.
func (p *taskInProgress) foregroundContinuation() {
	p.backend.removeInBackground(p)
	if p.shuttingDown.Load() {
		p.shutdownDrive()
		return
	}
	p.driveForeground(resumeMsg{foreground: true})
}

func (p *taskInProgress) driveForeground(msg resumeMsg) {
	p.setState(TaskStateForegroundRunning)
	for {
		y := p.task.co.resume(msg)
		if y.done {
			p.complete(y.err)
			return
		}
		switch y.request {
		case requestForeground, requestIsForeground:
			msg = resumeMsg{foreground: true}
		case requestBackground:
			p.goBackground()
			return
		default:
			panic(fmt.Sprintf("threadhop: task %q yielded unknown switch request %v", p.task.name, y.request))
		}
	}
}

func (p *taskInProgress) goBackground() {
	if p.backend.closed.Load() {
		p.shutdownDrive()
		return
	}
	p.markSwitch(SideBackground)
	p.backend.addInBackground(p)
	p.setState(TaskStateBackgroundPending)
	if err := p.backend.worker.Submit(p.backgroundContinuation); err != nil {
		p.backend.removeInBackground(p)
		p.reg.logger.Warn("background switch refused",
			F("owner", p.backend.name), F("task", p.task.name), F("error", err))
		p.shutdownDrive()
	}
}

// backgroundContinuation runs as a worker job.
func (p *taskInProgress) backgroundContinuation(_ context.Context) {
	p.setState(TaskStateBackgroundRunning)
	msg := resumeMsg{foreground: false}
	for {
		y := p.task.co.resume(msg)
		if y.done {
			if y.err == nil {
				p.backend.queue.Put(p.finishedContinuation)
			} else {
				p.mu.Lock()
				p.failure = y.err
				p.mu.Unlock()
				p.backend.queue.Put(p.exceptionContinuation)
			}
			return
		}
		switch y.request {
		case requestForeground:
			p.markSwitch(SideForeground)
			p.setState(TaskStateAwaitingForeground)
			p.backend.queue.Put(p.foregroundContinuation)
			return
		case requestBackground, requestIsForeground:
			msg = resumeMsg{foreground: false}
		default:
			// Fatal, so it is raised on the foreground. The body stays parked.
			p.mu.Lock()
			p.failure = fmt.Errorf("threadhop: task %q yielded unknown switch request %v", p.task.name, y.request)
			p.mu.Unlock()
			p.backend.queue.Put(p.exceptionContinuation)
			return
		}
	}
}

// finishedContinuation reports a body that returned on the worker.
func (p *taskInProgress) finishedContinuation() {
	p.backend.removeInBackground(p)
	p.complete(nil)
}

// exceptionContinuation re-raises a worker-side failure on the foreground.
func (p *taskInProgress) exceptionContinuation() {
	p.backend.removeInBackground(p)
	p.mu.Lock()
	err := p.failure
	p.mu.Unlock()
	p.complete(err)
}

// shutdownDrive finishes a task whose owner is gone. Every resume delivers the
// interruption, except that IsForeground is answered with true.
func (p *taskInProgress) shutdownDrive() {
	p.shuttingDown.Store(true)
	p.setState(TaskStateShuttingDown)
	interrupt := interruptedError(p.backend.name)
	msg := resumeMsg{err: interrupt}
	for {
		y := p.task.co.resume(msg)
		if y.done {
			p.complete(y.err)
			return
		}
		switch y.request {
		case requestIsForeground:
			msg = resumeMsg{foreground: true}
		case requestBackground, requestForeground:
			msg = resumeMsg{err: interrupt}
		default:
			panic(fmt.Sprintf("threadhop: task %q yielded unknown switch request %v", p.task.name, y.request))
		}
	}
}

// complete runs on the foreground once the body has ended. A failure is
// raised as a *TaskError panic so it surfaces like any failed foreground
// callback.
func (p *taskInProgress) complete(err error) {
	state := TaskStateCompleted
	switch {
	case err == nil:
	case errors.Is(err, ErrTaskInterrupted):
		state = TaskStateCancelled
	default:
		state = TaskStateFailed
	}

	p.mu.Lock()
	p.state = state
	switches := p.switches
	p.mu.Unlock()

	finishedAt := time.Now()
	record := TaskRecord{
		TaskID:     p.task.id,
		Name:       p.task.name,
		Owner:      p.backend.name,
		State:      state,
		StartedAt:  p.startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(p.startedAt),
		Switches:   switches,
	}
	if err != nil {
		record.Err = err.Error()
	}
	p.reg.history.Add(record)
	p.reg.metrics.RecordTaskFinished(p.backend.name, state, record.Duration)

	switch state {
	case TaskStateFailed:
		panic(newTaskError(p.task, p.backend.name, err))
	case TaskStateCancelled:
		p.reg.logger.Debug("task cancelled", F("owner", p.backend.name), F("task", p.task.name))
	}
}
