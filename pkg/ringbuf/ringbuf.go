// Package ringbuf provides a fixed-capacity FIFO buffer.
// Insertion evicts the oldest element when full; iteration order is
// arrival order. It is not safe for concurrent use.
package ringbuf

// Ring is a bounded FIFO ring buffer.
type Ring[T any] struct {
	items []T
	head  int // index of the oldest element
	count int
}

// New creates a ring buffer with the given capacity. Capacity must be positive.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ringbuf: capacity must be positive")
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when the buffer is full.
func (r *Ring[T]) Push(v T) {
	if r.count == len(r.items) {
		r.items[r.head] = v
		r.head = (r.head + 1) % len(r.items)
		return
	}
	r.items[(r.head+r.count)%len(r.items)] = v
	r.count++
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.items) }

// Items returns a copy of the buffered elements, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}
	return out
}

// Last returns the most recently pushed element.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	return r.items[(r.head+r.count-1)%len(r.items)], true
}
