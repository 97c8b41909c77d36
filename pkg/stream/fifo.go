package stream

import (
	"context"
	"sync"
)

// fifo is an unbounded FIFO buffer with blocking pop. Pushers never
// block, which is what lets the transport read loop schedule dispatch
// without waiting on handlers.
type fifo[T any] struct {
	mu     sync.Mutex
	items  []T
	wake   chan struct{}
	closed bool
}

func newFIFO[T any]() *fifo[T] {
	return &fifo[T]{wake: make(chan struct{}, 1)}
}

// push appends an item. It reports false after close.
func (f *fifo[T]) push(v T) bool {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return false
	}
	f.items = append(f.items, v)
	f.mu.Unlock()

	f.signal()
	return true
}

// pop removes the oldest item, blocking until one is available, the
// context ends, or the buffer is closed and drained.
func (f *fifo[T]) pop(ctx context.Context) (T, error) {
	var zero T
	for {
		f.mu.Lock()
		if len(f.items) > 0 {
			v := f.items[0]
			f.items = f.items[1:]
			remaining := len(f.items) > 0
			f.mu.Unlock()
			if remaining {
				f.signal()
			}
			return v, nil
		}
		closed := f.closed
		f.mu.Unlock()

		if closed {
			f.signal()
			return zero, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-f.wake:
		}
	}
}

// close stops accepting pushes. Buffered items remain poppable.
func (f *fifo[T]) close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.signal()
}

func (f *fifo[T]) signal() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *fifo[T]) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}
