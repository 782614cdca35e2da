package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Swind/go-threadhop/core"
)

type demoOwner struct {
	name string
	loop *core.ForegroundLoop
}

func (o *demoOwner) Dispatcher() core.Dispatcher { return o.loop }
func (o *demoOwner) Name() string                { return o.name }

type demoPlan struct {
	tasks        int
	steps        int
	work         time.Duration
	cleanupAfter time.Duration
}

type demoSummary struct {
	completed  int
	cancelled  int
	failed     int
	cleanupErr error
}

// runDemo starts plan.tasks tasks on owner, each alternating background work
// with a foreground progress update, and cleans the owner up once they are
// done or plan.cleanupAfter elapses.
func runDemo(ctx context.Context, loop *core.ForegroundLoop, reg *core.Registry, owner *demoOwner, plan demoPlan, logger core.Logger) demoSummary {
	var wg sync.WaitGroup
	wg.Add(plan.tasks)

	_ = loop.Call(ctx, func() {
		for i := range plan.tasks {
			reg.Start(owner, fmt.Sprintf("task-%d", i), func(t *core.Task) error {
				defer wg.Done()
				for step := range plan.steps {
					if err := t.Background(); err != nil {
						return err
					}
					time.Sleep(plan.work)
					if err := t.Foreground(); err != nil {
						return err
					}
					logger.Debug("task progress",
						core.F("task", t.Name()), core.F("step", step+1), core.F("of", plan.steps))
				}
				return nil
			})
		}
	})

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	var timeout <-chan time.Time
	if plan.cleanupAfter > 0 {
		timer := time.NewTimer(plan.cleanupAfter)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-finished:
	case <-timeout:
		logger.Info("cleanup deadline reached", core.F("owner", owner.name))
	case <-ctx.Done():
	}

	var summary demoSummary
	callErr := loop.Call(context.Background(), func() {
		summary.cleanupErr = reg.Cleanup(owner)
	})
	if callErr != nil && !errors.Is(callErr, core.ErrLoopClosed) {
		summary.cleanupErr = errors.Join(summary.cleanupErr, callErr)
	}
	_ = loop.WaitIdle(context.Background())

	for _, rec := range reg.RecentTasks(0) {
		switch rec.State {
		case core.TaskStateCompleted:
			summary.completed++
		case core.TaskStateCancelled:
			summary.cancelled++
		case core.TaskStateFailed:
			summary.failed++
		}
	}
	return summary
}
