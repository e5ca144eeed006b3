// Package mm implements the two-arena buddy allocator: independent
// power-of-two free-list allocators for a kernel arena and a user arena,
// each guarded by its own mutex, following original_source/mm/buddy_mm_malloc.c.
package mm

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"github.com/f4os-go/corertos/internal/constants"
	"github.com/f4os-go/corertos/internal/diag"
)

// MagicValue tags every live node header. Mirrors the spec's MM_MAGIC
// knob (internal/constants.MMMagic carries the same value).
const MagicValue = 0xB0DDBEEF

const headerSize = int32(constants.MMHeaderSize)

// Arena is one independent buddy allocator instance covering a
// contiguous, fixed-base-address byte region.
type Arena struct {
	name     string
	mem      []byte
	minOrder uint8
	maxOrder uint8
	mu       sync.Mutex
	freeList []int32 // indexed by order; offset of list head, nilOffset if empty

	allocated uint64 // bytes currently handed out, including headers
	highWater uint64
}

// NewArena reserves size bytes of backing memory and initializes it as one
// free block of order maxOrder, where size must equal 1<<maxOrder.
func NewArena(name string, size int, minOrder, maxOrder uint8) (*Arena, error) {
	if size != 1<<maxOrder {
		return nil, fmt.Errorf("mm: arena %q size %d does not match 1<<maxOrder (%d)", name, size, 1<<maxOrder)
	}
	mem, err := mmapBacking(size)
	if err != nil {
		return nil, fmt.Errorf("mm: arena %q backing allocation failed: %w", name, err)
	}
	a := &Arena{
		name:     name,
		mem:      mem,
		minOrder: minOrder,
		maxOrder: maxOrder,
		freeList: make([]int32, maxOrder+1),
	}
	for i := range a.freeList {
		a.freeList[i] = nilOffset
	}
	writeHeader(a.mem[0:], header{magic: MagicValue, order: maxOrder, flags: flagFree})
	writeNextPtr(a.mem, 0, nilOffset)
	a.freeList[maxOrder] = 0
	return a, nil
}

// Close releases the arena's backing memory.
func (a *Arena) Close() error {
	return munmapBacking(a.mem)
}

// Name returns the arena's diagnostic label ("kernel" or "user").
func (a *Arena) Name() string { return a.name }

// Stats reports current allocation bookkeeping for diagnostics/metrics.
func (a *Arena) Stats() (allocated, highWater uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocated, a.highWater
}

func sizeToOrder(size int32) uint8 {
	if size <= 1 {
		return 0
	}
	var order uint8
	n := size
	roundUp := n&(n-1) != 0
	for n > 1 {
		n >>= 1
		order++
	}
	if roundUp {
		order++
	}
	return order
}

// Alloc reserves a block able to hold size bytes of payload, returning a
// slice over exactly that many bytes, or nil on exhaustion.
func (a *Arena) Alloc(size int) []byte {
	order := sizeToOrder(int32(size) + headerSize)

	a.mu.Lock()
	off, ok := a.alloc(order)
	a.mu.Unlock()
	if !ok {
		return nil
	}
	payloadOff := off + headerSize
	return a.mem[payloadOff : int(payloadOff)+size : int(payloadOff)+size]
}

// alloc runs the split-search algorithm under a.mu and returns the byte
// offset of a handed-out block's header.
func (a *Arena) alloc(order uint8) (int32, bool) {
	if order < a.minOrder {
		order = a.minOrder
	} else if order > a.maxOrder {
		return 0, false
	}

	var nodeOff int32
	if a.freeList[order] != nilOffset {
		nodeOff = a.freeList[order]
		a.freeList[order] = a.readNext(nodeOff)
	} else {
		newOrder := order
		found := nilOffset
		for found == nilOffset && newOrder+1 <= a.maxOrder {
			newOrder++
			found = a.freeList[newOrder]
		}
		if found == nilOffset {
			return 0, false
		}
		a.freeList[newOrder] = a.readNext(found)
		nodeOff = found
		for newOrder > order {
			nodeOff = a.split(nodeOff, newOrder)
			newOrder--
		}
	}

	h := readHeader(a.mem[nodeOff:])
	if h.magic != MagicValue {
		diag.Fatal("mm: arena %q node with invalid magic at offset %d (magic=0x%x)", a.name, nodeOff, h.magic)
		return 0, false
	}
	if h.order != order {
		diag.Fatal("mm: arena %q node order mismatch at offset %d: have %d want %d", a.name, nodeOff, h.order, order)
		return 0, false
	}

	h.flags &^= flagFree
	writeHeader(a.mem[nodeOff:], h)

	sz := uint64(1) << order
	a.allocated += sz
	if a.allocated > a.highWater {
		a.highWater = a.allocated
	}

	return nodeOff, true
}

// split halves the order-k block at nodeOff: the lower half keeps nodeOff
// at order k-1 and is returned for further splitting/handout; the upper
// half (the buddy) is prepended to the order-(k-1) free list.
func (a *Arena) split(nodeOff int32, order uint8) int32 {
	h := readHeader(a.mem[nodeOff:])
	if h.magic != MagicValue {
		diag.Fatal("mm: arena %q attempted to split invalid node at offset %d", a.name, nodeOff)
	}
	newOrder := order - 1
	buddyOff := nodeOff + (int32(1) << newOrder)

	writeHeader(a.mem[buddyOff:], header{
		magic: MagicValue,
		order: newOrder,
		flags: flagFree,
	})
	writeNextPtr(a.mem, buddyOff, a.freeList[newOrder])
	a.freeList[newOrder] = buddyOff

	h.order = newOrder
	writeHeader(a.mem[nodeOff:], h)

	return nodeOff
}

// Free returns a payload slice previously returned by Alloc to its arena,
// coalescing with its buddy as far up as possible.
func (a *Arena) Free(payload []byte) {
	if len(payload) == 0 {
		return
	}
	off := a.offsetOf(payload)
	headerOff := off - headerSize

	a.mu.Lock()
	defer a.mu.Unlock()

	h := readHeader(a.mem[headerOff:])
	if h.magic != MagicValue {
		diag.Fatal("mm: arena %q free of corrupt block at offset %d (magic=0x%x)", a.name, headerOff, h.magic)
		return
	}
	if h.isFree() {
		diag.Fatal("mm: arena %q double free at offset %d", a.name, headerOff)
		return
	}

	a.allocated -= uint64(1) << h.order

	order := h.order
	nodeOff := headerOff
	for order < a.maxOrder {
		buddyOff := nodeOff ^ (int32(1) << order)
		if buddyOff < 0 || buddyOff+headerSize > int32(len(a.mem)) {
			break
		}
		bh := readHeader(a.mem[buddyOff:])
		if bh.magic != MagicValue || !bh.isFree() || bh.order != order {
			break
		}
		a.unlinkFree(order, buddyOff)
		if buddyOff < nodeOff {
			nodeOff = buddyOff
		}
		order++
	}

	writeHeader(a.mem[nodeOff:], header{
		magic: MagicValue,
		order: order,
		flags: flagFree,
	})
	writeNextPtr(a.mem, nodeOff, a.freeList[order])
	a.freeList[order] = nodeOff
}

// readNext reads the free-list link stored just past the header of the
// node at off. Only meaningful while the node is free: the same bytes
// become payload once the block is handed out.
func (a *Arena) readNext(off int32) int32 {
	return readNextPtr(a.mem, off)
}

func readNextPtr(mem []byte, off int32) int32 {
	return int32(binary.LittleEndian.Uint32(mem[off+headerSize:]))
}

func writeNextPtr(mem []byte, off int32, next int32) {
	binary.LittleEndian.PutUint32(mem[off+headerSize:], uint32(next))
}

// unlinkFree removes the node at off from the order free list, wherever
// it sits in the singly-linked chain.
func (a *Arena) unlinkFree(order uint8, off int32) {
	cur := a.freeList[order]
	if cur == off {
		a.freeList[order] = a.readNext(off)
		return
	}
	for cur != nilOffset {
		next := a.readNext(cur)
		if next == off {
			writeNextPtr(a.mem, cur, a.readNext(off))
			return
		}
		cur = next
	}
}

// offsetOf recovers a payload slice's byte offset within the arena's
// backing memory via pointer arithmetic against the arena base, the same
// unsafe.Pointer-address technique internal/queue/runner.go uses
// (pointerFromMmap) to work with mmap'd memory.
func (a *Arena) offsetOf(payload []byte) int32 {
	base := uintptr(unsafe.Pointer(&a.mem[0]))
	ptr := uintptr(unsafe.Pointer(&payload[0]))
	if ptr < base || ptr >= base+uintptr(len(a.mem)) {
		diag.Fatal("mm: arena %q free of pointer not owned by this arena", a.name)
		return 0
	}
	return int32(ptr - base)
}
