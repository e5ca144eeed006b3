package corertos

import (
	"sync/atomic"
	"time"
)

// Metrics tracks kernel-wide operational counters: allocator pressure,
// scheduler activity, and synchronization contention.
type Metrics struct {
	// Allocator counters
	MallocOps     atomic.Uint64
	KmallocOps    atomic.Uint64
	FreeOps       atomic.Uint64
	KfreeOps      atomic.Uint64
	AllocFailures atomic.Uint64

	// Scheduler counters
	ContextSwitches atomic.Uint64
	TasksCreated    atomic.Uint64
	TasksExited     atomic.Uint64
	TicksServiced   atomic.Uint64

	// Synchronization counters
	MutexAcquires    atomic.Uint64
	MutexContentions atomic.Uint64 // acquire calls that had to block
	DonationsApplied atomic.Uint64
	DeadlocksFound   atomic.Uint64

	// Resource table counters
	ResourceOpens  atomic.Uint64
	ResourceCloses atomic.Uint64

	StartTime atomic.Int64 // UnixNano
}

// NewMetrics creates a new metrics instance with its start time recorded.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// Snapshot is a point-in-time, non-atomic copy of Metrics suitable for
// logging or a status endpoint.
type Snapshot struct {
	MallocOps, KmallocOps, FreeOps, KfreeOps, AllocFailures uint64
	ContextSwitches, TasksCreated, TasksExited, TicksServiced uint64
	MutexAcquires, MutexContentions, DonationsApplied, DeadlocksFound uint64
	ResourceOpens, ResourceCloses uint64
	UptimeNs uint64
}

// Snapshot returns a consistent-enough reading of every counter.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		MallocOps:        m.MallocOps.Load(),
		KmallocOps:       m.KmallocOps.Load(),
		FreeOps:          m.FreeOps.Load(),
		KfreeOps:         m.KfreeOps.Load(),
		AllocFailures:    m.AllocFailures.Load(),
		ContextSwitches:  m.ContextSwitches.Load(),
		TasksCreated:     m.TasksCreated.Load(),
		TasksExited:      m.TasksExited.Load(),
		TicksServiced:    m.TicksServiced.Load(),
		MutexAcquires:    m.MutexAcquires.Load(),
		MutexContentions: m.MutexContentions.Load(),
		DonationsApplied: m.DonationsApplied.Load(),
		DeadlocksFound:   m.DeadlocksFound.Load(),
		ResourceOpens:    m.ResourceOpens.Load(),
		ResourceCloses:   m.ResourceCloses.Load(),
		UptimeNs:         uint64(time.Now().UnixNano() - m.StartTime.Load()),
	}
}

// Reset zeroes every counter. Useful for testing.
func (m *Metrics) Reset() {
	m.MallocOps.Store(0)
	m.KmallocOps.Store(0)
	m.FreeOps.Store(0)
	m.KfreeOps.Store(0)
	m.AllocFailures.Store(0)
	m.ContextSwitches.Store(0)
	m.TasksCreated.Store(0)
	m.TasksExited.Store(0)
	m.TicksServiced.Store(0)
	m.MutexAcquires.Store(0)
	m.MutexContentions.Store(0)
	m.DonationsApplied.Store(0)
	m.DeadlocksFound.Store(0)
	m.ResourceOpens.Store(0)
	m.ResourceCloses.Store(0)
	m.StartTime.Store(time.Now().UnixNano())
}

// Observer allows pluggable collection of kernel events. The Kernel
// reports allocator, mutex-acquire and resource events through it, and
// the scheduler reports task, switch and tick events through the narrower
// sched.Metrics interface; the sync2 primitives report nothing, so
// ObserveDonation and ObserveDeadlock are not called by the kernel.
type Observer interface {
	ObserveAlloc(kernel bool, ok bool)
	ObserveFree(kernel bool)
	ObserveContextSwitch()
	ObserveTaskLifecycle(created bool)
	ObserveTick()
	ObserveMutexAcquire(contended bool)
	ObserveDonation()
	ObserveDeadlock()
	ObserveResource(opened bool)
}

// NoOpObserver discards every event.
type NoOpObserver struct{}

func (NoOpObserver) ObserveAlloc(bool, bool)      {}
func (NoOpObserver) ObserveFree(bool)             {}
func (NoOpObserver) ObserveContextSwitch()        {}
func (NoOpObserver) ObserveTaskLifecycle(bool)    {}
func (NoOpObserver) ObserveTick()                 {}
func (NoOpObserver) ObserveMutexAcquire(bool)     {}
func (NoOpObserver) ObserveDonation()             {}
func (NoOpObserver) ObserveDeadlock()             {}
func (NoOpObserver) ObserveResource(bool)         {}

// MetricsObserver implements Observer by recording into a *Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveAlloc(kernel bool, ok bool) {
	if !ok {
		o.metrics.AllocFailures.Add(1)
		return
	}
	if kernel {
		o.metrics.KmallocOps.Add(1)
	} else {
		o.metrics.MallocOps.Add(1)
	}
}

func (o *MetricsObserver) ObserveFree(kernel bool) {
	if kernel {
		o.metrics.KfreeOps.Add(1)
	} else {
		o.metrics.FreeOps.Add(1)
	}
}

func (o *MetricsObserver) ObserveContextSwitch() { o.metrics.ContextSwitches.Add(1) }

func (o *MetricsObserver) ObserveTaskLifecycle(created bool) {
	if created {
		o.metrics.TasksCreated.Add(1)
	} else {
		o.metrics.TasksExited.Add(1)
	}
}

func (o *MetricsObserver) ObserveTick() { o.metrics.TicksServiced.Add(1) }

func (o *MetricsObserver) ObserveMutexAcquire(contended bool) {
	o.metrics.MutexAcquires.Add(1)
	if contended {
		o.metrics.MutexContentions.Add(1)
	}
}

func (o *MetricsObserver) ObserveDonation() { o.metrics.DonationsApplied.Add(1) }
func (o *MetricsObserver) ObserveDeadlock() { o.metrics.DeadlocksFound.Add(1) }

func (o *MetricsObserver) ObserveResource(opened bool) {
	if opened {
		o.metrics.ResourceOpens.Add(1)
	} else {
		o.metrics.ResourceCloses.Add(1)
	}
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
