package main

import (
	"context"
	"testing"
	"time"

	"github.com/Swind/go-threadhop/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRunDemo_AllTasksComplete verifies the demo waits for every task
// Given: Three short tasks with two steps each
// When: The demo runs without a cleanup deadline
// Then: All three tasks complete and cleanup reports nothing
func TestRunDemo_AllTasksComplete(t *testing.T) {
	// Arrange
	loop := core.NewForegroundLoop()
	defer loop.Stop()
	reg := core.NewRegistry(&core.RegistryConfig{IdleTimeout: 10 * time.Millisecond})
	owner := &demoOwner{name: "w", loop: loop}

	// Act
	summary := runDemo(context.Background(), loop, reg, owner, demoPlan{
		tasks: 3,
		steps: 2,
		work:  time.Millisecond,
	}, core.NewNoOpLogger())

	// Assert
	require.NoError(t, summary.cleanupErr)
	assert.Equal(t, 3, summary.completed)
	assert.Zero(t, summary.cancelled)
	assert.Zero(t, reg.Owners())
}

// TestRunDemo_CleanupInterruptsSlowTasks verifies the deadline path
// Given: Tasks whose background steps outlast the cleanup deadline
// When: The deadline elapses
// Then: Tasks still in the background end cancelled
func TestRunDemo_CleanupInterruptsSlowTasks(t *testing.T) {
	loop := core.NewForegroundLoop()
	defer loop.Stop()
	reg := core.NewRegistry(nil)
	owner := &demoOwner{name: "slow", loop: loop}

	summary := runDemo(context.Background(), loop, reg, owner, demoPlan{
		tasks:        2,
		steps:        5,
		work:         50 * time.Millisecond,
		cleanupAfter: 20 * time.Millisecond,
	}, core.NewNoOpLogger())

	require.NoError(t, summary.cleanupErr)
	assert.Equal(t, 2, summary.cancelled)
	assert.Zero(t, summary.failed)
}
