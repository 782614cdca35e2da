package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultIdleTimeout is how long an idle worker goroutine lingers before exiting.
const DefaultIdleTimeout = time.Second

// SingleFlightWorker runs jobs strictly in submission order on at most one
// goroutine at a time.
//
// The goroutine is spawned lazily by Submit and exits after IdleTimeout without
// work; the next Submit spawns a new one. An ordering token is handed from each
// goroutine incarnation to the next, so a new incarnation cannot start its first
// job until the previous one has returned from its last.
type SingleFlightWorker struct {
	name        string
	idleTimeout time.Duration
	errorHook   PanicHandler
	logger      Logger
	metrics     Metrics

	queue  *FIFOQueue[Job]
	signal chan struct{}
	token  chan struct{}

	mu           sync.Mutex
	running      bool
	closed       bool
	pending      int
	incarnations int

	active atomic.Int32 // concurrency assertion
}

// WorkerOption configures a SingleFlightWorker.
type WorkerOption func(*SingleFlightWorker)

// WithIdleTimeout sets how long the goroutine waits for work before exiting.
func WithIdleTimeout(d time.Duration) WorkerOption {
	return func(w *SingleFlightWorker) {
		if d > 0 {
			w.idleTimeout = d
		}
	}
}

// WithErrorHook routes job panics to h instead of the logger.
func WithErrorHook(h PanicHandler) WorkerOption {
	return func(w *SingleFlightWorker) { w.errorHook = h }
}

// WithWorkerLogger sets the logger.
func WithWorkerLogger(l Logger) WorkerOption {
	return func(w *SingleFlightWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithWorkerMetrics sets the metrics sink.
func WithWorkerMetrics(m Metrics) WorkerOption {
	return func(w *SingleFlightWorker) {
		if m != nil {
			w.metrics = m
		}
	}
}

// NewSingleFlightWorker creates a worker. No goroutine is started until the first Submit.
func NewSingleFlightWorker(name string, opts ...WorkerOption) *SingleFlightWorker {
	w := &SingleFlightWorker{
		name:        name,
		idleTimeout: DefaultIdleTimeout,
		logger:      NewNoOpLogger(),
		metrics:     &NilMetrics{},
		queue:       NewFIFOQueue[Job](),
		signal:      make(chan struct{}, 1),
		token:       make(chan struct{}, 1),
	}
	w.token <- struct{}{}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the worker name
func (w *SingleFlightWorker) Name() string {
	return w.name
}

// Submit enqueues job, spawning the worker goroutine if none is alive.
// It returns ErrWorkerClosed after Close.
func (w *SingleFlightWorker) Submit(job Job) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.metrics.RecordJobRejected(w.name, "closed")
		return fmt.Errorf("submit to worker %q: %w", w.name, ErrWorkerClosed)
	}
	w.queue.Push(job)
	w.pending++
	depth := w.pending
	spawn := !w.running
	if spawn {
		w.running = true
		w.incarnations++
	}
	w.mu.Unlock()

	w.metrics.RecordQueueDepth(w.name, depth)
	if spawn {
		go w.runLoop()
	} else {
		w.wake()
	}
	return nil
}

// PeekIdle reports whether no jobs are pending. The answer may be stale by the
// time the caller looks at it.
func (w *SingleFlightWorker) PeekIdle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending == 0
}

// Close stops accepting jobs. A live goroutine finishes the queue and exits.
func (w *SingleFlightWorker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()
	w.wake()
}

// IsClosed returns true after Close.
func (w *SingleFlightWorker) IsClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Stats returns a snapshot of the worker state.
func (w *SingleFlightWorker) Stats() WorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorkerStats{
		Name:         w.name,
		Pending:      w.pending,
		Running:      w.running,
		Closed:       w.closed,
		Incarnations: w.incarnations,
	}
}

func (w *SingleFlightWorker) wake() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// runLoop is one goroutine incarnation.
func (w *SingleFlightWorker) runLoop() {
	// Wait for the previous incarnation to hand over.
	<-w.token
	defer func() { w.token <- struct{}{} }()

	w.logger.Debug("worker goroutine started", F("worker", w.name))
	ctx := context.WithValue(context.Background(), workerKey, w)

	idle := time.NewTimer(w.idleTimeout)
	defer idle.Stop()

	for {
		if job, ok := w.queue.Pop(); ok {
			w.runJob(ctx, job)

			w.mu.Lock()
			w.pending--
			depth := w.pending
			w.mu.Unlock()
			w.metrics.RecordQueueDepth(w.name, depth)
			continue
		}

		w.mu.Lock()
		if w.closed && w.queue.IsEmpty() {
			w.running = false
			w.mu.Unlock()
			w.logger.Debug("worker goroutine exiting after close", F("worker", w.name))
			return
		}
		w.mu.Unlock()

		resetTimer(idle, w.idleTimeout)
		select {
		case <-w.signal:
		case <-idle.C:
			w.mu.Lock()
			// Repeat the test under the lock: Submit may have raced the timeout.
			if w.queue.IsEmpty() {
				w.running = false
				w.mu.Unlock()
				w.logger.Debug("worker goroutine idle, exiting", F("worker", w.name))
				return
			}
			w.mu.Unlock()
		}
	}
}

func (w *SingleFlightWorker) runJob(ctx context.Context, job Job) {
	if n := w.active.Add(1); n > 1 {
		panic(fmt.Sprintf("SingleFlightWorker %q: concurrent job execution detected (count=%d)", w.name, n))
	}
	defer w.active.Add(-1)

	startedAt := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			stack := debug.Stack()
			w.metrics.RecordJobPanic(w.name, rec)
			if w.errorHook != nil {
				w.errorHook.HandlePanic(ctx, w.name, rec, stack)
			} else {
				w.logger.Error("background job failed",
					F("worker", w.name), F("panic", rec), F("stack", string(stack)))
			}
		}
		w.metrics.RecordJobDuration(w.name, time.Since(startedAt))
	}()

	job(ctx)
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
