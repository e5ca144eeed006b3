package corertos

import (
	"bytes"
	"io"
	"sync"

	"github.com/f4os-go/corertos/internal/resource"
)

// BufferResource is an in-memory resource.Resource backed by a
// bytes.Buffer, for tests that need a task to Open/Read/Write/Close
// something without wiring a real shared-memory region or device.
// It also tracks call counts, the way the teacher's backend test double
// does, so a test can assert on access patterns as well as content.
type BufferResource struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool

	readCalls  int
	writeCalls int
	closeCalls int
}

// NewBufferResource returns a BufferResource, optionally preloaded with
// seed bytes a reader can consume immediately.
func NewBufferResource(seed []byte) *BufferResource {
	b := &BufferResource{}
	if len(seed) > 0 {
		b.buf.Write(seed)
	}
	return b
}

// Resource adapts the buffer into a *resource.Resource suitable for
// Kernel.Open.
func (b *BufferResource) Resource() *resource.Resource {
	return resource.New(b.Read, b.Write, b.Close)
}

// Read implements resource.ReaderFunc.
func (b *BufferResource) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readCalls++
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	return b.buf.Read(p)
}

// Write implements resource.WriterFunc.
func (b *BufferResource) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeCalls++
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	return b.buf.Write(p)
}

// Close implements resource.CloserFunc.
func (b *BufferResource) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeCalls++
	b.closed = true
	return nil
}

// Bytes returns a copy of whatever remains unread in the buffer.
func (b *BufferResource) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, b.buf.Len())
	copy(out, b.buf.Bytes())
	return out
}

// IsClosed reports whether Close has been called.
func (b *BufferResource) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// CallCounts returns how many times each operation ran, for tests that
// assert on access patterns rather than just content.
func (b *BufferResource) CallCounts() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return map[string]int{
		"read":  b.readCalls,
		"write": b.writeCalls,
		"close": b.closeCalls,
	}
}
