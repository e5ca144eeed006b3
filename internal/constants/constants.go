// Package constants holds the kernel-wide tunables referenced by
// multiple packages (allocator orders, header layout, tick timing).
package constants

import "time"

// Buddy allocator defaults. Orders are in units of bits: a block of
// order k is 2^k bytes.
const (
	// MMMinOrder is the default smallest block order for either arena (32 bytes).
	MMMinOrder = 5

	// MMMaxOrder is the default largest block order for either arena (arena-sized split point).
	MMMaxOrder = 20

	// MMHeaderSize is the size in bytes of the header prepended to every
	// block: magic(4) + order(1) + flags(1) + reserved(2). A free node's
	// single-link "next" pointer (original_source/mm/buddy_mm_malloc.c's
	// struct heapnode.next) is not part of the header; like the original,
	// it overlaps the first bytes of the payload area, which is unused
	// while the block sits on a free list.
	MMHeaderSize = 8

	// MMMagic tags a live heap node header. Any node whose header doesn't
	// carry this value is corrupt.
	MMMagic = 0xB0DDBEEF

	// MMMaxUserSize is the largest single allocation the user arena will serve.
	MMMaxUserSize = (1 << MMMaxOrder) - MMHeaderSize

	// MMMaxKernelSize is the largest single allocation the kernel arena will serve.
	MMMaxKernelSize = (1 << MMMaxOrder) - MMHeaderSize
)

// DefaultKernelArenaSize and DefaultUserArenaSize size the two mmap'd
// backing regions when a Kernel is built with default config.
const (
	DefaultKernelArenaSize = 1 << MMMaxOrder
	DefaultUserArenaSize   = 1 << MMMaxOrder
)

// Resource handle table sizing.
const (
	// ResourceTableSize is the number of handle slots per task.
	ResourceTableSize = 32
)

// Shared deque and shared-memory ring defaults.
const (
	// SharedDequeCapacity is the number of in-flight elements a Deque's
	// backing arena can hold at once.
	SharedDequeCapacity = 64

	// SharedMemoryRingSize is the default byte capacity of a named
	// shared-memory ring before it is rounded up to a power of two.
	SharedMemoryRingSize = 4096
)

// Scheduler timing.
const (
	// DefaultTickPeriod is the arch port's timer tick interval. Periodic
	// task periods are given as a whole number of these ticks.
	DefaultTickPeriod = time.Millisecond

	// DefaultStackSize is the nominal per-task stack allocation charged
	// against the kernel arena on NewTask (bookkeeping only — Go tasks run
	// as goroutines with runtime-managed stacks, but the kernel arena
	// still accounts for the reservation the way the original firmware
	// would have to).
	DefaultStackSize = 4096

	// IdleTaskPriority is the priority assigned to the mandatory idle task
	// installed before StartSched's first dispatch.
	IdleTaskPriority = 0

	// SchedWheelSize is the number of slots in the periodic-task wakeup
	// wheel. A task's wake tick maps to slot (tick % SchedWheelSize);
	// periods longer than one lap are tracked with a rounds counter.
	SchedWheelSize = 64
)
