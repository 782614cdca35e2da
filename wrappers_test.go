package threadhop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loopOwner struct {
	loop *ForegroundLoop
}

func (o *loopOwner) Dispatcher() Dispatcher { return o.loop }

// TestGlobalRegistry_Lifecycle verifies the package-level helpers share one registry
// Given: An initialized global registry and an owner on a loop
// When: A task runs through the helpers and the owner is cleaned up
// Then: Busy tracks the background segment and shutdown succeeds only after cleanup
func TestGlobalRegistry_Lifecycle(t *testing.T) {
	// Arrange
	InitGlobalRegistry(&RegistryConfig{IdleTimeout: 20 * time.Millisecond})
	InitGlobalRegistry(nil)
	reg := GlobalRegistry()
	loop := NewForegroundLoop(WithLoopName("global"))
	defer loop.Stop()
	owner := &loopOwner{loop: loop}
	release := make(chan struct{})
	inBackground := make(chan struct{})
	finished := make(chan struct{})

	// Act
	require.NoError(t, loop.Call(context.Background(), func() {
		Start(owner, "wait", func(task *Task) error {
			if err := task.Background(); err != nil {
				return err
			}
			close(inBackground)
			<-release
			if err := task.Foreground(); err != nil {
				return err
			}
			close(finished)
			return nil
		})
	}))
	<-inBackground

	// Assert
	assert.Same(t, reg, GlobalRegistry())
	var busy bool
	require.NoError(t, loop.Call(context.Background(), func() { busy = Busy(owner) }))
	assert.True(t, busy)
	assert.Error(t, ShutdownGlobalRegistry(), "owner still registered")

	close(release)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not finish")
	}

	var cleanupErr error
	require.NoError(t, loop.Call(context.Background(), func() { cleanupErr = Cleanup(owner) }))
	assert.NoError(t, cleanupErr)
	require.NoError(t, ShutdownGlobalRegistry())
	assert.Panics(t, func() { GlobalRegistry() })
	assert.NoError(t, ShutdownGlobalRegistry())
}

// TestGlobalHandler verifies Handler starts one task per call
func TestGlobalHandler(t *testing.T) {
	InitGlobalRegistry(nil)
	defer func() { _ = ShutdownGlobalRegistry() }()
	loop := NewForegroundLoop()
	defer loop.Stop()
	owner := &loopOwner{loop: loop}

	results := make(chan int, 2)
	onClick := Handler("click", func(task *Task, o *loopOwner, n int) error {
		if err := task.Background(); err != nil {
			return err
		}
		results <- n * 10
		return nil
	})

	require.NoError(t, loop.Call(context.Background(), func() {
		onClick(owner, 1)
		onClick(owner, 2)
	}))

	assert.Equal(t, 10, <-results)
	assert.Equal(t, 20, <-results)
	require.Eventually(t, func() bool {
		var busy bool
		_ = loop.Call(context.Background(), func() { busy = Busy(owner) })
		return !busy
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, loop.Call(context.Background(), func() { _ = Cleanup(owner) }))
}

// TestReexportedErrors verifies the aliases point at the core sentinels
func TestReexportedErrors(t *testing.T) {
	assert.True(t, errors.Is(ErrTaskInterrupted, ErrTaskInterrupted))
	assert.NotEqual(t, ErrWorkerClosed, ErrLoopClosed)
	assert.True(t, TaskStateCancelled.Terminal())
	assert.False(t, TaskStateBackgroundRunning.Terminal())
}
