// Package resource implements the task-scoped resource handle table from
// spec.md 4.E: a fixed-size array of capability records addressed by
// small integer handles, each guarded by its own semaphore.
package resource

import (
	"fmt"

	"github.com/f4os-go/corertos/internal/diag"
	"github.com/f4os-go/corertos/internal/sync2"
)

// ReaderFunc fills buf and reports how much was read.
type ReaderFunc func(buf []byte) (int, error)

// WriterFunc drains buf and reports how much was written.
type WriterFunc func(buf []byte) (int, error)

// CloserFunc releases whatever backs the resource.
type CloserFunc func() error

// Resource is the capability-record triple from spec.md 4.E: a reader, a
// writer, and a closer, plus the semaphore that guards the underlying
// device from concurrent access. Deliberately not an interface — the
// original models this as three function pointers on a struct, and so
// does this.
type Resource struct {
	Reader ReaderFunc
	Writer WriterFunc
	Closer CloserFunc

	sem *sync2.Semaphore
}

// New wraps reader/writer/closer in a Resource with its own guard
// semaphore. Any of them may be nil: a nil reader or writer makes Read or
// Write return an error, and a nil closer makes closing a no-op.
func New(reader ReaderFunc, writer WriterFunc, closer CloserFunc) *Resource {
	return &Resource{Reader: reader, Writer: writer, Closer: closer, sem: sync2.NewSemaphore()}
}

// Table is a task's fixed-size resource handle table: indices in
// [0, topRD) are either nil or point to a resource this task owns.
type Table struct {
	slots []*Resource
	topRD int
}

// NewTable creates an empty table with room for capacity open handles.
func NewTable(capacity int) *Table {
	return &Table{slots: make([]*Resource, capacity)}
}

// Open registers r at the lowest free slot below topRD, growing topRD if
// every slot below it is taken. Returns an error (the spec's "transient
// resource exhaustion" sentinel) rather than panicking when the table is
// full — the caller is expected to retry or fail the open gracefully.
func (t *Table) Open(r *Resource) (int, error) {
	for i := 0; i < t.topRD; i++ {
		if t.slots[i] == nil {
			t.slots[i] = r
			return i, nil
		}
	}
	if t.topRD >= len(t.slots) {
		return -1, fmt.Errorf("resource: handle table exhausted (capacity %d)", len(t.slots))
	}
	i := t.topRD
	t.slots[i] = r
	t.topRD++
	return i, nil
}

func (t *Table) lookup(handle int) *Resource {
	if handle < 0 || handle >= t.topRD || t.slots[handle] == nil {
		diag.Fatal("resource: access to uninitialized or out-of-range handle %d", handle)
		return nil
	}
	return t.slots[handle]
}

// Read reads through handle's resource under its guard semaphore.
func (t *Table) Read(self sync2.Task, handle int, buf []byte) (int, error) {
	r := t.lookup(handle)
	if r.Reader == nil {
		return 0, fmt.Errorf("resource: handle %d is not readable", handle)
	}
	r.sem.Acquire(self)
	defer r.sem.Release(self)
	return r.Reader(buf)
}

// Write writes through handle's resource under its guard semaphore.
func (t *Table) Write(self sync2.Task, handle int, buf []byte) (int, error) {
	r := t.lookup(handle)
	if r.Writer == nil {
		return 0, fmt.Errorf("resource: handle %d is not writable", handle)
	}
	r.sem.Acquire(self)
	defer r.sem.Release(self)
	return r.Writer(buf)
}

// Close runs handle's closer and clears the slot. Closing an
// already-closed or never-opened handle is a fatal uninitialized-access,
// same as Read/Write.
func (t *Table) Close(handle int) error {
	r := t.lookup(handle)
	t.slots[handle] = nil
	if r.Closer == nil {
		return nil
	}
	return r.Closer()
}

// CloseAll runs every still-open slot's closer and clears the table. This
// is what task_exit calls so a task's resources are released exactly
// once, in handle order, regardless of whether the task closed them
// itself.
func (t *Table) CloseAll() {
	for i := 0; i < t.topRD; i++ {
		if t.slots[i] == nil {
			continue
		}
		r := t.slots[i]
		t.slots[i] = nil
		if r.Closer != nil {
			r.Closer()
		}
	}
}
