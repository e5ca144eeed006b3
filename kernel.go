// Package corertos is the public surface of the kernel core: a single
// Kernel value carries every subsystem (allocator, scheduler, sync
// primitives, resource tables, shared deque/memory) the way the
// original firmware carries them as file-scope globals.
package corertos

import (
	"fmt"
	"sync"

	"github.com/f4os-go/corertos/internal/archport"
	"github.com/f4os-go/corertos/internal/config"
	"github.com/f4os-go/corertos/internal/mm"
	"github.com/f4os-go/corertos/internal/resource"
	"github.com/f4os-go/corertos/internal/sched"
	"github.com/f4os-go/corertos/internal/shared"
	"github.com/f4os-go/corertos/internal/sync2"
)

// Kernel ties every subsystem together behind the operation surface
// spec.md section 6 names. Build one with NewKernel and call StartSched
// to begin dispatching tasks.
type Kernel struct {
	cfg     config.Config
	alloc   *mm.Allocator
	port    *archport.Port
	sched   *sched.Scheduler
	metrics *Metrics
	obs     *MetricsObserver

	tablesMu sync.Mutex
	tables   map[uint64]*resource.Table

	memMu   sync.Mutex
	regions map[string]*shared.Memory
}

// NewKernel builds a Kernel from cfg, allocating both arenas and
// installing the scheduler's resource-closer hook. Returns an error if
// the arenas can't be mapped.
func NewKernel(cfg config.Config) (*Kernel, error) {
	alloc, err := mm.NewAllocator(cfg.KernelArenaSize, cfg.UserArenaSize, cfg.MinOrder, cfg.MaxOrder)
	if err != nil {
		return nil, WrapError("NewKernel", err)
	}
	port := archport.New(cfg.TickPeriod)
	metrics := NewMetrics()
	obs := NewMetricsObserver(metrics)

	k := &Kernel{
		cfg:     cfg,
		alloc:   alloc,
		port:    port,
		sched:   sched.New(port, alloc, obs),
		metrics: metrics,
		obs:     obs,
		tables:  make(map[uint64]*resource.Table),
		regions: make(map[string]*shared.Memory),
	}
	k.sched.SetResourceCloser(k.closeTaskResources)
	return k, nil
}

// NewDefaultKernel builds a Kernel from config.Default().
func NewDefaultKernel() (*Kernel, error) {
	return NewKernel(config.Default())
}

// Metrics returns the kernel's live metrics, safe to read concurrently
// with normal operation.
func (k *Kernel) Metrics() *Metrics { return k.metrics }

// StartSched boots the scheduler: installs the idle task, starts
// servicing ticks, and dispatches the first ready task.
func (k *Kernel) StartSched() {
	k.port.Start()
	k.sched.StartSched()
}

// Stop halts tick servicing and releases both arenas. Intended for
// orderly shutdown in tests and the demo program, not a normal kernel
// operation.
func (k *Kernel) Stop() error {
	k.sched.Stop()
	k.port.Stop()
	return k.alloc.Close()
}

// NewTask creates a task running fn at priority, with period == 0 for
// an aperiodic task or a tick count for a periodic one. Returns nil if
// the kernel arena can't supply a stack.
func (k *Kernel) NewTask(fn func(*sched.Task), priority uint8, periodTicks int) *sched.Task {
	t := k.sched.NewTask(fn, priority, periodTicks)
	if t == nil {
		return nil
	}
	k.tablesMu.Lock()
	k.tables[t.ID()] = resource.NewTable(k.cfg.ResourceTableSize)
	k.tablesMu.Unlock()
	return t
}

// TaskSwitch is the privileged/diagnostic escape hatch from spec.md's
// open question: forces an immediate switch away from self to target,
// bypassing normal priority selection. Not used by any ordinary kernel
// path.
func (k *Kernel) TaskSwitch(self, target *sched.Task) error {
	return k.sched.TaskSwitch(self, target)
}

// YieldIfPossible offers the CPU to the highest-priority ready task, a
// no-op if nothing of at least equal priority to self is ready.
func (k *Kernel) YieldIfPossible(self *sched.Task) { self.Yield() }

// CurrTask returns the currently running task.
func (k *Kernel) CurrTask() *sched.Task { return k.sched.Current() }

// TotalTasks returns the number of live (non-ZOMBIE) tasks.
func (k *Kernel) TotalTasks() int { return k.sched.TotalTasks() }

// TaskRunnable reports whether t is READY or RUNNING.
func (k *Kernel) TaskRunnable(t *sched.Task) bool { return sched.TaskRunnable(t) }

// TaskCompare orders tasks by effective priority, descending.
func (k *Kernel) TaskCompare(a, b *sched.Task) int { return sched.TaskCompare(a, b) }

// Malloc allocates size bytes from the user arena, nil on oversized or
// failed requests.
func (k *Kernel) Malloc(size int) []byte {
	b := k.alloc.Malloc(size)
	k.obs.ObserveAlloc(false, b != nil)
	return b
}

// Kmalloc allocates size bytes from the kernel arena.
func (k *Kernel) Kmalloc(size int) []byte {
	b := k.alloc.Kmalloc(size)
	k.obs.ObserveAlloc(true, b != nil)
	return b
}

// Free returns payload to the user arena.
func (k *Kernel) Free(payload []byte) {
	k.alloc.Free(payload)
	k.obs.ObserveFree(false)
}

// Kfree returns payload to the kernel arena.
func (k *Kernel) Kfree(payload []byte) {
	k.alloc.Kfree(payload)
	k.obs.ObserveFree(true)
}

// InitMutex returns a new, free mutex.
func (k *Kernel) InitMutex() *sync2.Mutex { return sync2.NewMutex() }

// InitSemaphore returns a new, free semaphore.
func (k *Kernel) InitSemaphore() *sync2.Semaphore { return sync2.NewSemaphore() }

// Acquire acquires m on self's behalf, applying priority donation and
// blocking until self becomes the holder.
func (k *Kernel) Acquire(self *sched.Task, m *sync2.Mutex) {
	_, contended := m.HolderTask()
	self.AcquireMutex(m)
	k.obs.ObserveMutexAcquire(contended)
}

// Release releases m, which must be held by self.
func (k *Kernel) Release(self *sched.Task, m *sync2.Mutex) { self.ReleaseMutex(m) }

func (k *Kernel) tableFor(self *sched.Task) *resource.Table {
	k.tablesMu.Lock()
	defer k.tablesMu.Unlock()
	return k.tables[self.ID()]
}

// Open registers r in self's resource handle table.
func (k *Kernel) Open(self *sched.Task, r *resource.Resource) (int, error) {
	h, err := k.tableFor(self).Open(r)
	if err == nil {
		k.obs.ObserveResource(true)
	}
	return h, err
}

// Read reads from self's handle.
func (k *Kernel) Read(self *sched.Task, handle int, buf []byte) (int, error) {
	return k.tableFor(self).Read(self, handle, buf)
}

// Write writes to self's handle.
func (k *Kernel) Write(self *sched.Task, handle int, buf []byte) (int, error) {
	return k.tableFor(self).Write(self, handle, buf)
}

// Close closes self's handle.
func (k *Kernel) Close(self *sched.Task, handle int) error {
	err := k.tableFor(self).Close(handle)
	k.obs.ObserveResource(false)
	return err
}

// Printf writes formatted output to self's stdout handle.
func (k *Kernel) Printf(self *sched.Task, format string, args ...any) error {
	_, err := k.Write(self, self.Stdout, []byte(fmt.Sprintf(format, args...)))
	return err
}

// Getc reads one byte from self's stdin handle. Returns an error if
// nothing was available.
func (k *Kernel) Getc(self *sched.Task) (byte, error) {
	buf := make([]byte, 1)
	n, err := k.Read(self, self.Stdin, buf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, NewError("Getc", ErrCodeInvalidParameter, "no byte available")
	}
	return buf[0], nil
}

func (k *Kernel) closeTaskResources(t *sched.Task) {
	k.tablesMu.Lock()
	table, ok := k.tables[t.ID()]
	delete(k.tables, t.ID())
	k.tablesMu.Unlock()
	if ok {
		table.CloseAll()
	}
}

// OpenSharedMemory attaches to (creating if absent) a named
// shared-memory region, registering it as a resource in self's handle
// table with a reader/writer routed through the region and a closer
// that drops the region's reference count.
func (k *Kernel) OpenSharedMemory(self *sched.Task, name string, size int) (int, error) {
	k.memMu.Lock()
	region, exists := k.regions[name]
	if !exists {
		region = shared.NewMemory(name, size)
		k.regions[name] = region
	} else {
		region.Open()
	}
	k.memMu.Unlock()

	r := resource.New(
		func(buf []byte) (int, error) { return region.Read(self, buf) },
		func(buf []byte) (int, error) { return region.Write(self, buf) },
		func() error {
			if region.Close() {
				k.memMu.Lock()
				delete(k.regions, name)
				k.memMu.Unlock()
			}
			return nil
		},
	)
	return k.Open(self, r)
}

// sharedDeques holds every named shared deque, created on the first
// SdeqAdd or SdeqPop that uses its name; spec.md's original is a single global deque per
// compiled-in DEFINE_SHARED_DEQ site, generalized here to a name-keyed
// map of generic deques so more than one can exist in the same kernel.
var sharedDeques = struct {
	mu sync.Mutex
	m  map[string]*shared.Deque[any]
}{m: make(map[string]*shared.Deque[any])}

func deque(name string) *shared.Deque[any] {
	sharedDeques.mu.Lock()
	defer sharedDeques.mu.Unlock()
	d, ok := sharedDeques.m[name]
	if !ok {
		d = shared.NewDeque[any]()
		sharedDeques.m[name] = d
	}
	return d
}

// SdeqAdd appends elem to the tail of the named shared deque.
func (k *Kernel) SdeqAdd(name string, elem any) { deque(name).Add(elem) }

// SdeqPop removes and returns the head of the named shared deque, or
// ok=false if it's empty.
func (k *Kernel) SdeqPop(name string) (any, bool) { return deque(name).Pop() }
