package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// ownerBackend is the scheduler state attached to one owner.
type ownerBackend struct {
	owner  Owner
	name   string
	queue  *NotificationQueue[Continuation]
	worker *SingleFlightWorker

	// inBackground holds the tasks that may still put a continuation on
	// queue. It is only changed from the foreground; the lock keeps Stats
	// callers on other goroutines honest.
	mu           sync.Mutex
	inBackground map[*taskInProgress]struct{}

	closed atomic.Bool
}

func (b *ownerBackend) addInBackground(p *taskInProgress) {
	b.mu.Lock()
	b.inBackground[p] = struct{}{}
	b.mu.Unlock()
}

func (b *ownerBackend) removeInBackground(p *taskInProgress) {
	b.mu.Lock()
	delete(b.inBackground, p)
	b.mu.Unlock()
}

func (b *ownerBackend) inBackgroundLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inBackground)
}

func (b *ownerBackend) inBackgroundSnapshot() []*taskInProgress {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*taskInProgress, 0, len(b.inBackground))
	for p := range b.inBackground {
		out = append(out, p)
	}
	return out
}

func invokeContinuation(c Continuation) { c() }

// Registry maps owners to their scheduler state.
//
// Start, Busy and Cleanup are meant to be called from the foreground context
// of the owner involved. The registry keeps a strong reference to each owner
// until Cleanup; owners are never released implicitly.
type Registry struct {
	cfg     RegistryConfig
	logger  Logger
	metrics Metrics
	history *taskHistory

	mu       sync.Mutex
	backends map[Owner]*ownerBackend
}

// NewRegistry creates an empty registry. A nil cfg uses DefaultRegistryConfig.
func NewRegistry(cfg *RegistryConfig) *Registry {
	c := cfg.withDefaults()
	return &Registry{
		cfg:      c,
		logger:   c.Logger,
		metrics:  c.Metrics,
		history:  newTaskHistory(c.HistoryCapacity),
		backends: make(map[Owner]*ownerBackend),
	}
}

func (r *Registry) backendFor(owner Owner) *ownerBackend {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.backends[owner]; ok {
		return b
	}

	name := ownerName(owner)
	b := &ownerBackend{
		owner: owner,
		name:  name,
		queue: NewNotificationQueue(owner.Dispatcher(), invokeContinuation),
		worker: NewSingleFlightWorker(name,
			WithIdleTimeout(r.cfg.IdleTimeout),
			WithErrorHook(r.cfg.ErrorHook),
			WithWorkerLogger(r.logger),
			WithWorkerMetrics(r.metrics),
		),
		inBackground: make(map[*taskInProgress]struct{}),
	}
	r.backends[owner] = b
	r.logger.Debug("owner backend created", F("owner", name))
	return b
}

func (r *Registry) lookup(owner Owner) (*ownerBackend, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.backends[owner]
	return b, ok
}

// Start runs body as a new task of owner. The body starts synchronously on
// the calling goroutine, which must be owner's foreground, and Start returns
// when it first switches to the background or ends. A body that fails on the
// foreground panics out of Start with a *TaskError.
func (r *Registry) Start(owner Owner, name string, body TaskFunc) TaskID {
	if owner == nil {
		panic("threadhop: Start with nil owner")
	}
	if body == nil {
		panic("threadhop: Start with nil body")
	}
	if !reflect.ValueOf(owner).Comparable() {
		panic(fmt.Sprintf("threadhop: owner of type %T is not comparable; owners are keyed by identity and should be pointers", owner))
	}
	p := newTaskInProgress(r, r.backendFor(owner), name, body)
	p.foregroundContinuation()
	return p.task.id
}

// Busy reports whether owner has tasks on the background side. A task asking
// from its own foreground segment does not count itself.
func (r *Registry) Busy(owner Owner) bool {
	b, ok := r.lookup(owner)
	if !ok {
		return false
	}
	return b.inBackgroundLen() > 0
}

// Cleanup is CleanupContext with a background context.
func (r *Registry) Cleanup(owner Owner) error {
	return r.CleanupContext(context.Background(), owner)
}

// CleanupContext tears down owner's scheduler state. Tasks still on the
// background side are interrupted at their next switch point and driven to
// completion on the calling goroutine, so once it returns nothing will touch
// owner through its dispatcher again.
//
// Task failures other than the interruption are joined into the returned
// error. If ctx ends first, the tasks still outstanding are abandoned and
// ctx's error is included.
func (r *Registry) CleanupContext(ctx context.Context, owner Owner) error {
	r.mu.Lock()
	b, ok := r.backends[owner]
	if ok {
		delete(r.backends, owner)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}

	b.closed.Store(true)
	b.queue.Unbind()

	pending := b.inBackgroundSnapshot()
	for _, p := range pending {
		p.shuttingDown.Store(true)
	}
	r.logger.Info("cleaning up owner", F("owner", b.name), F("in_background", len(pending)))

	var errs []error
	for b.inBackgroundLen() > 0 {
		c, err := b.queue.Get(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("cleanup %s: %w", b.name, err))
			break
		}
		if err := runContinuation(c); err != nil {
			r.logger.Error("task failed during cleanup", F("owner", b.name), F("error", err))
			errs = append(errs, err)
		}
	}

	b.worker.Close()
	return errors.Join(errs...)
}

// runContinuation invokes c and returns what it panicked with, if anything.
func runContinuation(c Continuation) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok {
				err = e
				return
			}
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	c()
	return nil
}

// Stats returns the state attached to owner, if any.
func (r *Registry) Stats(owner Owner) (OwnerStats, bool) {
	b, ok := r.lookup(owner)
	if !ok {
		return OwnerStats{}, false
	}
	return b.stats(), true
}

func (b *ownerBackend) stats() OwnerStats {
	return OwnerStats{
		Owner:        b.name,
		InBackground: b.inBackgroundLen(),
		Queued:       b.queue.Len(),
		Worker:       b.worker.Stats(),
	}
}

// Snapshot returns the stats of every registered owner.
func (r *Registry) Snapshot() []OwnerStats {
	r.mu.Lock()
	backends := make([]*ownerBackend, 0, len(r.backends))
	for _, b := range r.backends {
		backends = append(backends, b)
	}
	r.mu.Unlock()

	out := make([]OwnerStats, 0, len(backends))
	for _, b := range backends {
		out = append(out, b.stats())
	}
	return out
}

// Owners returns the number of owners with live scheduler state.
func (r *Registry) Owners() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.backends)
}

// RecentTasks returns up to limit finished tasks, newest first.
// A limit <= 0 returns the whole retained history.
func (r *Registry) RecentTasks(limit int) []TaskRecord {
	return r.history.Recent(limit)
}

// LastTask returns the most recently finished task.
func (r *Registry) LastTask() (TaskRecord, bool) {
	return r.history.Last()
}

// Handler turns fn into a plain event handler: every call starts a new task
// of the given owner.
func Handler[O Owner, A any](r *Registry, name string, fn func(t *Task, owner O, arg A) error) func(owner O, arg A) {
	return func(owner O, arg A) {
		r.Start(owner, name, func(t *Task) error {
			return fn(t, owner, arg)
		})
	}
}
