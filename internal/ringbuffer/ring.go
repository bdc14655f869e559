// Package ringbuffer provides a fixed-size lock-free ring for passing
// records from one producer goroutine to one consumer goroutine.
package ringbuffer

import "sync/atomic"

// Ring is a single-producer/single-consumer queue. One slot is kept empty to
// tell a full ring from an empty one, so a ring of size n holds n-1 records.
//
// Push may only be called from the producer and Pop from the consumer; the
// two sides never block each other.
type Ring[T any] struct {
	data []T
	mask uint64

	// Monotonic counters; positions are taken modulo len(data).
	writePos atomic.Uint64
	_        [56]byte // keep the counters on separate cache lines
	readPos  atomic.Uint64
}

// New creates a ring with size slots, rounded up to a power of two (at
// least 2).
func New[T any](size int) *Ring[T] {
	n := 2
	for n < size {
		n <<= 1
	}
	return &Ring[T]{
		data: make([]T, n),
		mask: uint64(n - 1),
	}
}

// Cap returns the number of records the ring can hold.
func (r *Ring[T]) Cap() int {
	return len(r.data) - 1
}

// Len returns the number of records waiting to be read.
func (r *Ring[T]) Len() int {
	return int(r.writePos.Load() - r.readPos.Load())
}

// Push appends v. It returns false, dropping v, when the ring is full.
func (r *Ring[T]) Push(v T) bool {
	w := r.writePos.Load()
	if w-r.readPos.Load() >= r.mask {
		return false
	}
	r.data[w&r.mask] = v
	r.writePos.Store(w + 1)
	return true
}

// Pop removes the oldest record.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	rd := r.readPos.Load()
	if rd == r.writePos.Load() {
		return zero, false
	}
	v := r.data[rd&r.mask]
	r.data[rd&r.mask] = zero
	r.readPos.Store(rd + 1)
	return v, true
}

// Drain pops every waiting record, calling fn on each in order, and returns
// how many were delivered.
func (r *Ring[T]) Drain(fn func(T)) int {
	n := 0
	for {
		v, ok := r.Pop()
		if !ok {
			return n
		}
		fn(v)
		n++
	}
}
