package core

import (
	"context"
	"sync"
)

// NotificationQueue hands items from any goroutine to the foreground context.
//
// Every Put ensures exactly one drain request is outstanding on the bound
// dispatcher; puts that arrive before that drain runs are coalesced into it.
// Once unbound, Get is the only way to retrieve items.
type NotificationQueue[T any] struct {
	mu        sync.Mutex
	items     *FIFOQueue[T]
	d         Dispatcher
	onReceive func(T)
	pending   bool
	avail     chan struct{}
}

// NewNotificationQueue creates a queue bound to d. A nil d leaves it unbound.
func NewNotificationQueue[T any](d Dispatcher, onReceive func(T)) *NotificationQueue[T] {
	return &NotificationQueue[T]{
		items:     NewFIFOQueue[T](),
		d:         d,
		onReceive: onReceive,
		avail:     make(chan struct{}, 1),
	}
}

// Put enqueues item. Safe from any goroutine.
func (q *NotificationQueue[T]) Put(item T) {
	q.mu.Lock()
	q.items.Push(item)
	var post Dispatcher
	if q.d != nil && !q.pending {
		q.pending = true
		post = q.d
	}
	q.mu.Unlock()

	select {
	case q.avail <- struct{}{}:
	default:
	}
	if post != nil {
		post.Post(q.Drain)
	}
}

// Drain runs on the foreground. It delivers every queued item, including items
// put while draining, before returning.
func (q *NotificationQueue[T]) Drain() {
	q.mu.Lock()
	q.pending = false
	q.mu.Unlock()

	for {
		q.mu.Lock()
		onReceive := q.onReceive
		if q.d == nil || onReceive == nil {
			// Unbound mid-drain: leave the rest for Get.
			q.mu.Unlock()
			return
		}
		item, ok := q.items.Pop()
		q.mu.Unlock()
		if !ok {
			return
		}
		q.deliver(onReceive, item)
	}
}

func (q *NotificationQueue[T]) deliver(onReceive func(T), item T) {
	defer func() {
		if rec := recover(); rec != nil {
			// The dispatcher reports the panic; schedule another drain so the
			// items behind this one are not stranded.
			q.mu.Lock()
			var post Dispatcher
			if q.d != nil && !q.pending && !q.items.IsEmpty() {
				q.pending = true
				post = q.d
			}
			q.mu.Unlock()
			if post != nil {
				post.Post(q.Drain)
			}
			panic(rec)
		}
	}()
	onReceive(item)
}

// Bind attaches the queue to d and schedules a drain if items are waiting.
func (q *NotificationQueue[T]) Bind(d Dispatcher, onReceive func(T)) {
	q.mu.Lock()
	q.d = d
	q.onReceive = onReceive
	var post Dispatcher
	if d != nil && !q.pending && !q.items.IsEmpty() {
		q.pending = true
		post = d
	}
	q.mu.Unlock()
	if post != nil {
		post.Post(q.Drain)
	}
}

// Unbind detaches the queue from its dispatcher. A drain already posted
// returns without delivering anything.
func (q *NotificationQueue[T]) Unbind() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.d = nil
	q.onReceive = nil
	q.pending = false
}

// Get blocks until an item is available or ctx is done.
func (q *NotificationQueue[T]) Get(ctx context.Context) (T, error) {
	for {
		if item, ok := q.items.Pop(); ok {
			if !q.items.IsEmpty() {
				select {
				case q.avail <- struct{}{}:
				default:
				}
			}
			return item, nil
		}
		select {
		case <-q.avail:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Len returns the number of queued items.
func (q *NotificationQueue[T]) Len() int {
	return q.items.Len()
}
