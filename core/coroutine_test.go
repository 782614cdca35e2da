package core

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCoroutine_YieldResume verifies the hand-off protocol
// Given: A body that yields three requests and reads the answers
// When: The driver resumes it step by step
// Then: Requests arrive in order, answers reach the body, and its result is reported
func TestCoroutine_YieldResume(t *testing.T) {
	// Arrange
	var answers []bool
	var c *coroutine
	c = newCoroutine(func() error {
		answers = append(answers, c.yield(requestBackground).foreground)
		answers = append(answers, c.yield(requestIsForeground).foreground)
		if err := c.yield(requestForeground).err; err != nil {
			return err
		}
		return errors.New("finished")
	})

	// Act & Assert
	y := c.resume(resumeMsg{foreground: true})
	require.False(t, y.done)
	assert.Equal(t, requestBackground, y.request)

	y = c.resume(resumeMsg{foreground: false})
	assert.Equal(t, requestIsForeground, y.request)

	y = c.resume(resumeMsg{foreground: false})
	assert.Equal(t, requestForeground, y.request)

	y = c.resume(resumeMsg{foreground: true})
	require.True(t, y.done)
	assert.EqualError(t, y.err, "finished")
	assert.Equal(t, []bool{false, false}, answers)
}

// TestCoroutine_InjectedError verifies an error delivered at a switch point
func TestCoroutine_InjectedError(t *testing.T) {
	boom := errors.New("injected")
	var c *coroutine
	c = newCoroutine(func() error {
		return c.yield(requestBackground).err
	})

	c.resume(resumeMsg{foreground: true})
	y := c.resume(resumeMsg{err: boom})

	require.True(t, y.done)
	assert.Same(t, boom, y.err)
}

// TestCoroutine_ErrorOnFirstResume verifies the body never runs
func TestCoroutine_ErrorOnFirstResume(t *testing.T) {
	ran := false
	c := newCoroutine(func() error {
		ran = true
		return nil
	})

	y := c.resume(resumeMsg{err: ErrTaskInterrupted})

	require.True(t, y.done)
	assert.ErrorIs(t, y.err, ErrTaskInterrupted)
	assert.False(t, ran)
}

// TestCoroutine_PanicBecomesPanicError verifies panics are captured with a stack
func TestCoroutine_PanicBecomesPanicError(t *testing.T) {
	c := newCoroutine(func() error { panic("body blew up") })

	y := c.resume(resumeMsg{foreground: true})

	require.True(t, y.done)
	var pe *PanicError
	require.ErrorAs(t, y.err, &pe)
	assert.Equal(t, "body blew up", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.Panics(t, func() { c.resume(resumeMsg{}) })
}

// TestSwitchNames verifies the String forms used in logs
func TestSwitchNames(t *testing.T) {
	assert.Equal(t, "go-background", requestBackground.String())
	assert.Equal(t, "query-am-i-foreground", requestIsForeground.String())
	assert.Equal(t, "switchRequest(42)", switchRequest(42).String())
	assert.Equal(t, "background", SideBackground.String())
	assert.Equal(t, "awaiting-foreground", TaskStateAwaitingForeground.String())
	assert.Equal(t, "TaskState(99)", TaskState(99).String())
	assert.True(t, TaskStateCancelled.Terminal())
	assert.False(t, TaskStateShuttingDown.Terminal())
}

// TestCoroutine_GoexitReportsCompletion verifies a body ending in
// runtime.Goexit still releases the driver
// Given: A body that calls runtime.Goexit, as t.FailNow does
// When: The driver resumes it
// Then: resume returns a completion carrying a *PanicError
func TestCoroutine_GoexitReportsCompletion(t *testing.T) {
	// Arrange
	c := newCoroutine(func() error {
		runtime.Goexit()
		return nil
	})
	got := make(chan yieldMsg, 1)

	// Act
	go func() { got <- c.resume(resumeMsg{foreground: true}) }()

	// Assert
	select {
	case y := <-got:
		require.True(t, y.done)
		var pe *PanicError
		require.ErrorAs(t, y.err, &pe)
		assert.Equal(t, errBodyGoexit, pe.Value)
	case <-time.After(waitFor):
		t.Fatal("driver still blocked after the body exited")
	}
}
