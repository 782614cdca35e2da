package core

import (
	"fmt"
	"runtime/debug"
)

type resumeMsg struct {
	foreground bool
	err        error
}

type yieldMsg struct {
	request switchRequest
	done    bool
	err     error
}

// coroutine runs a task body on its own goroutine and hands control back and
// forth with the driver over unbuffered channels. Exactly one of the two is
// running at any time: the driver blocks in resume while the body runs, and
// the body blocks in yield while the driver runs.
type coroutine struct {
	body     func() error
	resumeCh chan resumeMsg
	yieldCh  chan yieldMsg
	started  bool
	done     bool
}

func newCoroutine(body func() error) *coroutine {
	return &coroutine{
		body:     body,
		resumeCh: make(chan resumeMsg),
		yieldCh:  make(chan yieldMsg),
	}
}

// resume hands control to the body and waits for its next switch request or
// its completion. The first resume starts the body; if it carries an error the
// body never runs and that error is its result.
func (c *coroutine) resume(msg resumeMsg) yieldMsg {
	if c.done {
		panic("coroutine: resume after completion")
	}
	if !c.started {
		c.started = true
		go c.run()
	}
	c.resumeCh <- msg
	y := <-c.yieldCh
	if y.done {
		c.done = true
	}
	return y
}

// yield is called from the body goroutine.
func (c *coroutine) yield(req switchRequest) resumeMsg {
	c.yieldCh <- yieldMsg{request: req}
	return <-c.resumeCh
}

// errBodyGoexit is reported for a body that ended with runtime.Goexit.
const errBodyGoexit = "task body exited via runtime.Goexit"

func (c *coroutine) run() {
	var err error
	returned := false
	// Sent from a defer so a body ending in runtime.Goexit still releases
	// the driver.
	defer func() {
		if !returned {
			err = &PanicError{Value: errBodyGoexit, Stack: debug.Stack()}
		}
		c.yieldCh <- yieldMsg{done: true, err: err}
	}()

	first := <-c.resumeCh
	err = first.err
	if err == nil {
		err = c.call()
	}
	returned = true
}

func (c *coroutine) call() (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	if c.body == nil {
		return fmt.Errorf("coroutine: nil body")
	}
	return c.body()
}
