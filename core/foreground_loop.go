package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ForegroundLoop binds a dedicated goroutine that runs posted callbacks one at
// a time, in posting order. It is the foreground context tasks return to.
//
// Posting never blocks: the queue is unbounded, so worker goroutines can hand
// continuations back without waiting on the loop.
type ForegroundLoop struct {
	queue  *FIFOQueue[func()]
	signal chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	stopped      chan struct{}
	stopOnce     sync.Once
	closed       atomic.Bool
	shutdownChan chan struct{}
	shutdownOnce sync.Once

	panicHandler PanicHandler
	metrics      Metrics
	logger       Logger

	running  atomic.Bool
	rejected atomic.Int64
	panics   atomic.Int64

	mu   sync.Mutex
	name string
}

// LoopOption configures a ForegroundLoop.
type LoopOption func(*ForegroundLoop)

// WithLoopName sets the loop name used in logs and metrics.
func WithLoopName(name string) LoopOption {
	return func(l *ForegroundLoop) { l.name = name }
}

// WithPanicHandler sets where callback panics, including task failures, go.
func WithPanicHandler(h PanicHandler) LoopOption {
	return func(l *ForegroundLoop) {
		if h != nil {
			l.panicHandler = h
		}
	}
}

// WithLoopMetrics sets the metrics sink.
func WithLoopMetrics(m Metrics) LoopOption {
	return func(l *ForegroundLoop) {
		if m != nil {
			l.metrics = m
		}
	}
}

// WithLoopLogger sets the logger.
func WithLoopLogger(lg Logger) LoopOption {
	return func(l *ForegroundLoop) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// NewForegroundLoop creates and starts a loop.
func NewForegroundLoop(opts ...LoopOption) *ForegroundLoop {
	ctx, cancel := context.WithCancel(context.Background())
	l := &ForegroundLoop{
		queue:        NewFIFOQueue[func()](),
		signal:       make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
		stopped:      make(chan struct{}),
		shutdownChan: make(chan struct{}),
		metrics:      &NilMetrics{},
		logger:       NewNoOpLogger(),
		name:         "foreground",
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.panicHandler == nil {
		l.panicHandler = &DefaultPanicHandler{Logger: l.logger}
	}

	go l.runLoop()
	return l
}

// Name returns the name of the loop
func (l *ForegroundLoop) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.name
}

// SetName sets the name of the loop
func (l *ForegroundLoop) SetName(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.name = name
}

// Post queues callback. Callbacks posted after Shutdown are dropped.
func (l *ForegroundLoop) Post(callback func()) {
	if callback == nil {
		return
	}
	if l.closed.Load() {
		l.rejected.Add(1)
		l.metrics.RecordJobRejected(l.Name(), "closed")
		return
	}
	l.queue.Push(callback)
	l.metrics.RecordQueueDepth(l.Name(), l.queue.Len())
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// PostDelayed queues callback after delay.
// Uses time.AfterFunc, so a pending delay does not hold the loop.
func (l *ForegroundLoop) PostDelayed(callback func(), delay time.Duration) {
	if l.closed.Load() {
		l.rejected.Add(1)
		return
	}
	time.AfterFunc(delay, func() {
		l.Post(callback)
	})
}

// Call runs fn on the loop and waits for it. A panic in fn is returned as a
// *PanicError instead of reaching the panic handler.
func (l *ForegroundLoop) Call(ctx context.Context, fn func()) error {
	if l.IsClosed() {
		return ErrLoopClosed
	}
	done := make(chan error, 1)
	l.Post(func() {
		done <- callRecovering(fn)
	})
	select {
	case err := <-done:
		return err
	case <-l.stopped:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func callRecovering(fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	fn()
	return nil
}

// WaitIdle blocks until all callbacks posted before it have run.
// This is implemented by posting a barrier callback and waiting for it.
//
// Note: callbacks posted by those callbacks are not waited for.
func (l *ForegroundLoop) WaitIdle(ctx context.Context) error {
	if l.IsClosed() {
		return fmt.Errorf("wait idle on %s: %w", l.Name(), ErrLoopClosed)
	}
	done := make(chan struct{})
	l.Post(func() { close(done) })

	select {
	case <-done:
		return nil
	case <-l.stopped:
		return fmt.Errorf("wait idle on %s: %w", l.Name(), ErrLoopClosed)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FlushAsync runs callback on the loop once every callback posted before it
// has run. Non-blocking alternative to WaitIdle.
func (l *ForegroundLoop) FlushAsync(callback func()) {
	l.Post(callback)
}

// Shutdown stops accepting callbacks. Callbacks already queued still run;
// the goroutine exits once the queue is empty. Safe to call from a callback.
func (l *ForegroundLoop) Shutdown() {
	l.shutdownOnce.Do(func() {
		l.closed.Store(true)
		close(l.shutdownChan)
		select {
		case l.signal <- struct{}{}:
		default:
		}
	})
}

// WaitShutdown blocks until Shutdown is called.
func (l *ForegroundLoop) WaitShutdown(ctx context.Context) error {
	select {
	case <-l.shutdownChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts the loop down, discards queued callbacks and waits for the
// current one to return. Must not be called from a callback.
func (l *ForegroundLoop) Stop() {
	l.stopOnce.Do(func() {
		l.Shutdown()
		l.cancel()
		<-l.stopped
		l.queue.Clear()
	})
}

// IsClosed returns true after Shutdown or Stop.
func (l *ForegroundLoop) IsClosed() bool {
	return l.closed.Load()
}

// Stats returns a snapshot of the loop state.
func (l *ForegroundLoop) Stats() LoopStats {
	return LoopStats{
		Name:     l.Name(),
		Pending:  l.queue.Len(),
		Running:  l.running.Load(),
		Rejected: l.rejected.Load(),
		Closed:   l.closed.Load(),
		Panics:   l.panics.Load(),
	}
}

// runLoop occupies the dedicated goroutine.
func (l *ForegroundLoop) runLoop() {
	defer close(l.stopped)

	for {
		if l.ctx.Err() != nil {
			return
		}
		if callback, ok := l.queue.Pop(); ok {
			l.runCallback(callback)
			continue
		}
		if l.closed.Load() {
			return
		}
		select {
		case <-l.signal:
		case <-l.ctx.Done():
			return
		}
	}
}

func (l *ForegroundLoop) runCallback(callback func()) {
	l.running.Store(true)
	startedAt := time.Now()
	defer func() {
		l.running.Store(false)
		if rec := recover(); rec != nil {
			l.panics.Add(1)
			l.metrics.RecordJobPanic(l.Name(), rec)
			l.panicHandler.HandlePanic(l.ctx, l.Name(), rec, debug.Stack())
		}
		l.metrics.RecordJobDuration(l.Name(), time.Since(startedAt))
	}()
	callback()
}
