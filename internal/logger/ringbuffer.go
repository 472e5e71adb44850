package logger

import "sync"

// RingBuffer keeps the most recent entries up to a fixed capacity.
type RingBuffer[T any] struct {
	mu      sync.RWMutex
	entries []T
	next    int
	full    bool
}

// NewRingBuffer creates a ring buffer holding at most capacity entries.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer[T]{entries: make([]T, capacity)}
}

// Push adds an item, dropping the oldest one when full.
func (r *RingBuffer[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = item
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// Snapshot returns the buffered entries from oldest to newest.
func (r *RingBuffer[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full {
		out := make([]T, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]T, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	return append(out, r.entries[:r.next]...)
}

func (r *RingBuffer[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}
