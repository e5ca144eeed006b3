package corertos

import (
	"testing"
	"time"
)

func TestMetricsInitialState(t *testing.T) {
	m := NewMetrics()
	snap := m.Snapshot()
	if snap.MallocOps != 0 || snap.ContextSwitches != 0 || snap.MutexAcquires != 0 {
		t.Errorf("expected all counters zero on a fresh Metrics, got %+v", snap)
	}
}

func TestMetricsAllocatorCounters(t *testing.T) {
	m := NewMetrics()
	o := NewMetricsObserver(m)

	o.ObserveAlloc(false, true)
	o.ObserveAlloc(false, true)
	o.ObserveAlloc(true, true)
	o.ObserveAlloc(false, false)
	o.ObserveFree(false)
	o.ObserveFree(true)

	snap := m.Snapshot()
	if snap.MallocOps != 2 {
		t.Errorf("expected 2 MallocOps, got %d", snap.MallocOps)
	}
	if snap.KmallocOps != 1 {
		t.Errorf("expected 1 KmallocOps, got %d", snap.KmallocOps)
	}
	if snap.AllocFailures != 1 {
		t.Errorf("expected 1 AllocFailures, got %d", snap.AllocFailures)
	}
	if snap.FreeOps != 1 || snap.KfreeOps != 1 {
		t.Errorf("expected FreeOps=1 KfreeOps=1, got %+v", snap)
	}
}

func TestMetricsSchedulerCounters(t *testing.T) {
	m := NewMetrics()
	o := NewMetricsObserver(m)

	o.ObserveTaskLifecycle(true)
	o.ObserveTaskLifecycle(true)
	o.ObserveTaskLifecycle(false)
	o.ObserveContextSwitch()
	o.ObserveContextSwitch()
	o.ObserveTick()

	snap := m.Snapshot()
	if snap.TasksCreated != 2 || snap.TasksExited != 1 {
		t.Errorf("expected 2 created 1 exited, got %+v", snap)
	}
	if snap.ContextSwitches != 2 {
		t.Errorf("expected 2 context switches, got %d", snap.ContextSwitches)
	}
	if snap.TicksServiced != 1 {
		t.Errorf("expected 1 tick serviced, got %d", snap.TicksServiced)
	}
}

func TestMetricsSyncCounters(t *testing.T) {
	m := NewMetrics()
	o := NewMetricsObserver(m)

	o.ObserveMutexAcquire(false)
	o.ObserveMutexAcquire(true)
	o.ObserveDonation()
	o.ObserveDeadlock()

	snap := m.Snapshot()
	if snap.MutexAcquires != 2 {
		t.Errorf("expected 2 acquires, got %d", snap.MutexAcquires)
	}
	if snap.MutexContentions != 1 {
		t.Errorf("expected 1 contention, got %d", snap.MutexContentions)
	}
	if snap.DonationsApplied != 1 || snap.DeadlocksFound != 1 {
		t.Errorf("expected 1 donation and 1 deadlock, got %+v", snap)
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()
	time.Sleep(5 * time.Millisecond)
	snap := m.Snapshot()
	if snap.UptimeNs < 5*uint64(time.Millisecond) {
		t.Errorf("expected uptime >= 5ms, got %d ns", snap.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	o := NewMetricsObserver(m)
	o.ObserveMutexAcquire(true)
	o.ObserveContextSwitch()

	m.Reset()

	snap := m.Snapshot()
	if snap.MutexAcquires != 0 || snap.ContextSwitches != 0 {
		t.Errorf("expected all counters zero after reset, got %+v", snap)
	}
}

func TestNoOpObserverDoesNotPanic(t *testing.T) {
	var o Observer = NoOpObserver{}
	o.ObserveAlloc(false, true)
	o.ObserveFree(true)
	o.ObserveContextSwitch()
	o.ObserveTaskLifecycle(true)
	o.ObserveTick()
	o.ObserveMutexAcquire(false)
	o.ObserveDonation()
	o.ObserveDeadlock()
	o.ObserveResource(true)
}
