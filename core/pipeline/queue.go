package pipeline

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Dequeue once a closed queue is drained.
var ErrQueueClosed = errors.New("queue closed")

// Queue is a typed, unbounded, in-process FIFO joining two pipeline stages.
// Enqueue never blocks; Dequeue blocks until an item arrives, the queue is
// closed, or the context is cancelled.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	consumed int
	closed   bool

	updateSignal chan struct{}
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{updateSignal: make(chan struct{}, 1)}
}

func (q *Queue[T]) Enqueue(item T) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.signalUpdate()
}

// Dequeue blocks until an item is available. It returns ErrQueueClosed after
// the queue was closed and fully drained.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if q.consumed < len(q.items) {
			item := q.items[q.consumed]
			q.items[q.consumed] = zero
			q.consumed++
			q.mu.Unlock()
			return item, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return zero, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.updateSignal:
		}
	}
}

// TryDequeue pops an item without blocking.
func (q *Queue[T]) TryDequeue() (T, bool) {
	var zero T
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.consumed >= len(q.items) {
		return zero, false
	}

	item := q.items[q.consumed]
	q.items[q.consumed] = zero
	q.consumed++
	return item, true
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items) - q.consumed
}

// Close marks the queue as accepting no further items. Pending items can
// still be dequeued; blocked consumers are woken.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.signalUpdate()
}

func (q *Queue[T]) signalUpdate() {
	select {
	case q.updateSignal <- struct{}{}:
	default:
	}
}
