package shared

import (
	"fmt"
	"sync"

	"github.com/f4os-go/corertos/internal/constants"
	"github.com/f4os-go/corertos/internal/ringbuf"
	"github.com/f4os-go/corertos/internal/sync2"
)

// Memory is the shared-memory resource from spec.md 4.E/4.G: a named
// ring buffer, reference-counted by the number of open handles, with a
// blocking read (consumer parks until data arrives) and a lossy write
// (producer never blocks; a full ring drops its oldest bytes). Destroyed
// when the last handle closes.
type Memory struct {
	name string
	sem  *sync2.Semaphore

	mu     sync.Mutex
	ring   *ringbuf.Ring
	refs   int
	notify chan struct{} // closed and replaced on every write, wakes blocked readers
}

// NewMemory creates a named shared-memory region with one open reference.
// A size of zero or less selects constants.SharedMemoryRingSize.
// Call Open for every additional handle and Close for every handle
// released, including the first.
func NewMemory(name string, size int) *Memory {
	if size <= 0 {
		size = constants.SharedMemoryRingSize
	}
	return &Memory{
		name:   name,
		sem:    sync2.NewSemaphore(),
		ring:   ringbuf.New(size),
		refs:   1,
		notify: make(chan struct{}),
	}
}

// Name returns the region's name, as registered with whatever directory
// of shared regions the kernel keeps.
func (m *Memory) Name() string { return m.name }

// Open adds a reference, for a second task attaching to the same named
// region.
func (m *Memory) Open() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs++
}

// Close drops a reference. Returns true once the last reference is
// dropped, signaling the caller (the kernel's resource closer) that the
// region should be removed from any name directory.
func (m *Memory) Close() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs--
	return m.refs <= 0
}

// Write copies p into the ring under self's guard semaphore, then wakes
// any reader parked in Read. Never blocks: a full ring drops its oldest
// bytes to make room, per spec.md 7's transient-exhaustion policy.
func (m *Memory) Write(self sync2.Task, p []byte) (int, error) {
	m.sem.Acquire(self)
	defer m.sem.Release(self)

	m.mu.Lock()
	if m.refs <= 0 {
		m.mu.Unlock()
		return 0, ErrClosed
	}
	n, _ := m.ring.Write(p)
	old := m.notify
	m.notify = make(chan struct{})
	m.mu.Unlock()
	close(old)
	return n, nil
}

// Read waits until at least one byte is available, then copies up to
// len(p) bytes into p. While the ring is empty, a self that can Yield
// (a scheduler task) yields the CPU between polls so other tasks, such
// as the writer, get to run; any other self blocks until the next Write.
func (m *Memory) Read(self sync2.Task, p []byte) (int, error) {
	for {
		m.sem.Acquire(self)
		m.mu.Lock()
		if m.refs <= 0 {
			m.mu.Unlock()
			m.sem.Release(self)
			return 0, ErrClosed
		}
		n := m.ring.Read(p)
		wait := m.notify
		m.mu.Unlock()
		m.sem.Release(self)

		if n > 0 {
			return n, nil
		}
		if y, ok := self.(interface{ Yield() }); ok {
			y.Yield()
			continue
		}
		<-wait
	}
}

// ErrClosed is returned by operations on a region with no remaining
// open handles.
var ErrClosed = fmt.Errorf("shared: memory region closed")
