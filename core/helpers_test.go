package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// panicRecorder collects everything that reaches a PanicHandler.
type panicRecorder struct {
	mu     sync.Mutex
	values []any
	onCall func(panicInfo any)
}

func (r *panicRecorder) HandlePanic(ctx context.Context, source string, panicInfo any, stackTrace []byte) {
	r.mu.Lock()
	r.values = append(r.values, panicInfo)
	onCall := r.onCall
	r.mu.Unlock()
	if onCall != nil {
		onCall(panicInfo)
	}
}

func (r *panicRecorder) Values() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.values...)
}

func (r *panicRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// testOwner is an owner whose dispatcher is a ForegroundLoop. inLoop is true
// while a foreground callback of this owner runs.
type testOwner struct {
	name     string
	loop     *ForegroundLoop
	panics   *panicRecorder
	inLoop   atomic.Bool
	dispatch atomic.Int32
}

func newTestOwner(t *testing.T, name string) *testOwner {
	t.Helper()
	rec := &panicRecorder{}
	o := &testOwner{
		name:   name,
		panics: rec,
		loop:   NewForegroundLoop(WithLoopName(name), WithPanicHandler(rec)),
	}
	t.Cleanup(o.loop.Stop)
	return o
}

func (o *testOwner) Name() string { return o.name }

func (o *testOwner) Dispatcher() Dispatcher {
	return DispatcherFunc(func(callback func()) {
		o.dispatch.Add(1)
		o.loop.Post(func() {
			o.inLoop.Store(true)
			defer o.inLoop.Store(false)
			callback()
		})
	})
}

// run executes fn on the owner's loop and waits for it.
func (o *testOwner) run(t *testing.T, fn func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	err := o.loop.Call(ctx, func() {
		o.inLoop.Store(true)
		defer o.inLoop.Store(false)
		fn()
	})
	require.NoError(t, err)
}

func newTestRegistry() *Registry {
	return NewRegistry(&RegistryConfig{IdleTimeout: 50 * time.Millisecond})
}

// waitClosed fails the test if ch is not closed in time.
func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitFor):
		t.Fatalf("timed out waiting for %s", what)
	}
}
