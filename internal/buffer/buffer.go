// Package buffer provides the bounded FIFO that sits between the reader
// goroutine and the event consumer.
package buffer

import "sync"

// DefaultCapacity is the capacity used when New is given a non-positive value.
const DefaultCapacity = 1000

// Buffer is a capacity-limited FIFO queue. When a push takes the length past
// the capacity, the oldest entries are dropped in one step so that only the
// newest capacity/2 remain. All methods are safe for concurrent use.
type Buffer[T any] struct {
	mu    sync.Mutex
	items []T
	cap   int
}

// New creates a Buffer with the given capacity.
// A capacity below 2 is raised to 2 so that an overflow always keeps at
// least one entry; zero or negative values select DefaultCapacity.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if capacity < 2 {
		capacity = 2
	}
	return &Buffer[T]{
		items: make([]T, 0, capacity+1),
		cap:   capacity,
	}
}

// Push appends v and returns how many of the oldest entries were evicted.
func (b *Buffer[T]) Push(v T) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, v)
	if len(b.items) <= b.cap {
		return 0
	}

	keep := b.cap / 2
	evicted := len(b.items) - keep
	// Copy into a fresh slice so the evicted entries can be collected.
	kept := make([]T, keep, b.cap+1)
	copy(kept, b.items[evicted:])
	b.items = kept
	return evicted
}

// Pop removes and returns the oldest entry. It reports false when the buffer
// is empty and never blocks.
func (b *Buffer[T]) Pop() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	if len(b.items) == 0 {
		return zero, false
	}
	v := b.items[0]
	b.items[0] = zero
	b.items = b.items[1:]
	return v, true
}

// Len returns the number of buffered entries.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Cap returns the capacity of the buffer.
func (b *Buffer[T]) Cap() int {
	return b.cap
}

// Clear drops all buffered entries.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = make([]T, 0, b.cap+1)
}
