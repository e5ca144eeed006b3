// Package shared implements the two cross-task communication primitives
// spec.md 4.G builds on top of the intrusive list and the sync/resource
// layers: a FIFO deque of arbitrary payloads, and a named shared-memory
// ring.
package shared

import (
	"sync"

	"github.com/f4os-go/corertos/internal/constants"
	"github.com/f4os-go/corertos/internal/list"
)

// Deque is the shared FIFO from original_source's DEFINE_SHARED_DEQ /
// sdeq_add / __sdeq_pop: Add appends, Pop removes from the head and
// returns ok=false on an empty deque rather than blocking — callers that
// want to wait poll it from a periodic task, exactly as deq_test.c does.
type Deque[T any] struct {
	mu         sync.Mutex
	arena      *list.Arena[T]
	head, tail list.Handle
	size       int
}

// NewDeque creates an empty deque with room for constants.SharedDequeCapacity
// in-flight elements.
func NewDeque[T any]() *Deque[T] {
	return &Deque[T]{arena: list.New[T](constants.SharedDequeCapacity)}
}

// Add appends payload to the tail of the deque. Silently drops the
// payload if the backing arena is exhausted — the original's malloc-backed
// list has no such ceiling, but a fixed kernel arena does, and spec.md 7
// treats this the same as any other transient resource exhaustion.
func (d *Deque[T]) Add(payload T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.arena.Alloc(payload)
	if h == 0 {
		return
	}
	d.head, d.tail = d.arena.PushBack(d.head, d.tail, h)
	d.size++
}

// Pop removes and returns the head element, or the zero value and false
// if the deque is empty. Mirrors __sdeq_pop returning NULL on an empty
// list rather than blocking: a task that finds nothing is expected to
// either retry later or, as deq_test.c's t1/t2 do, produce its own
// message and exit.
func (d *Deque[T]) Pop() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, newHead, newTail := d.arena.PopFront(d.head, d.tail)
	d.head, d.tail = newHead, newTail
	if h == 0 {
		var zero T
		return zero, false
	}
	payload, _ := d.arena.Get(h)
	d.arena.Free(h)
	d.size--
	return payload, true
}

// Len reports the number of elements currently queued. Not part of the
// original API; useful for tests and diagnostics.
func (d *Deque[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}
