package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Send after Close, and by Recv once a closed queue is drained.
var ErrClosed = errors.New("queue closed")

// Unbounded is an ordered FIFO that never blocks producers.
// Any number of goroutines may Send and Recv concurrently.
type Unbounded[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	closed bool
	notify chan struct{}
}

// NewUnbounded creates an empty queue
func NewUnbounded[T any]() *Unbounded[T] {
	return &Unbounded[T]{
		notify: make(chan struct{}, 1),
	}
}

// Send appends v to the tail of the queue.
func (q *Unbounded[T]) Send(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.wake()
	return nil
}

// Recv removes and returns the head of the queue, waiting until a value
// arrives, the queue is closed and drained, or ctx is done.
func (q *Unbounded[T]) Recv(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if q.head < len(q.items) {
			v := q.pop()
			more := q.head < len(q.items)
			q.mu.Unlock()
			if more {
				q.wake()
			}
			return v, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			// pass the wakeup on to any other blocked receiver
			q.wake()
			var zero T
			return zero, ErrClosed
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.notify:
		}
	}
}

// pop must be called with mu held and a non-empty queue.
func (q *Unbounded[T]) pop() T {
	var zero T
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head > 1024 && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return v
}

func (q *Unbounded[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Close stops the queue from accepting values. Values already queued can
// still be received.
func (q *Unbounded[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

// Closed reports whether Close has been called.
func (q *Unbounded[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued values.
func (q *Unbounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
