package corertos

import (
	"bytes"
	"testing"
	"time"

	"github.com/f4os-go/corertos/internal/config"
	"github.com/f4os-go/corertos/internal/resource"
	"github.com/f4os-go/corertos/internal/sched"
)

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	cfg := config.New(
		config.WithArenaSizes(1<<16, 1<<16),
		config.WithTickPeriod(0),
		config.WithResourceTableSize(8),
	)
	k, err := NewKernel(cfg)
	if err != nil {
		t.Fatalf("NewKernel: %v", err)
	}
	t.Cleanup(func() { k.Stop() })
	return k
}

func TestNewDefaultKernelBoots(t *testing.T) {
	k, err := NewDefaultKernel()
	if err != nil {
		t.Fatalf("NewDefaultKernel: %v", err)
	}
	defer k.Stop()
	k.StartSched()
	if k.CurrTask() == nil {
		t.Fatal("expected idle task to be running after StartSched")
	}
}

func TestMallocFreeUpdatesMetrics(t *testing.T) {
	k := newTestKernel(t)

	b := k.Malloc(64)
	if b == nil {
		t.Fatal("Malloc returned nil")
	}
	k.Free(b)

	kb := k.Kmalloc(32)
	if kb == nil {
		t.Fatal("Kmalloc returned nil")
	}
	k.Kfree(kb)

	snap := k.Metrics().Snapshot()
	if snap.MallocOps != 1 || snap.FreeOps != 1 {
		t.Fatalf("expected one malloc/free pair, got %+v", snap)
	}
	if snap.KmallocOps != 1 || snap.KfreeOps != 1 {
		t.Fatalf("expected one kmalloc/kfree pair, got %+v", snap)
	}
}

func TestNewTaskRunsAndExits(t *testing.T) {
	k := newTestKernel(t)
	k.StartSched()

	ran := make(chan struct{})
	task := k.NewTask(func(self *sched.Task) {
		close(ran)
	}, 5, 0)
	if task == nil {
		t.Fatal("NewTask returned nil")
	}

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task never exited")
	}

	if k.Metrics().Snapshot().TasksCreated == 0 {
		t.Fatal("expected TasksCreated to be observed")
	}
}

func TestOpenReadWriteCloseRoutesThroughResourceTable(t *testing.T) {
	k := newTestKernel(t)
	k.StartSched()

	done := make(chan error, 1)
	k.NewTask(func(self *sched.Task) {
		var buf bytes.Buffer
		r := resource.New(
			func(p []byte) (int, error) { return buf.Read(p) },
			func(p []byte) (int, error) { return buf.Write(p) },
			func() error { return nil },
		)
		handle, err := k.Open(self, r)
		if err != nil {
			done <- err
			return
		}
		if _, err := k.Write(self, handle, []byte("hello")); err != nil {
			done <- err
			return
		}
		out := make([]byte, 5)
		n, err := k.Read(self, handle, out)
		if err != nil {
			done <- err
			return
		}
		if string(out[:n]) != "hello" {
			done <- NewError("test", ErrCodeInvalidParameter, "round trip mismatch")
			return
		}
		done <- k.Close(self, handle)
	}, 5, 0)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("resource round trip failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("task never completed resource round trip")
	}

	snap := k.Metrics().Snapshot()
	if snap.ResourceOpens != 1 || snap.ResourceCloses != 1 {
		t.Fatalf("expected one open/close pair, got %+v", snap)
	}
}

func TestPrintfWritesToStdout(t *testing.T) {
	k := newTestKernel(t)
	k.StartSched()

	done := make(chan error, 1)
	k.NewTask(func(self *sched.Task) {
		var buf bytes.Buffer
		r := resource.New(nil, func(p []byte) (int, error) { return buf.Write(p) }, func() error { return nil })
		handle, err := k.Open(self, r)
		if err != nil {
			done <- err
			return
		}
		self.Stdout = handle
		if err := k.Printf(self, "tick %d", 7); err != nil {
			done <- err
			return
		}
		if buf.String() != "tick 7" {
			done <- NewError("test", ErrCodeInvalidParameter, "printf mismatch: "+buf.String())
			return
		}
		done <- nil
	}, 5, 0)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Printf failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("task never completed Printf")
	}
}

func TestAcquireReleaseMutexSerializesTasks(t *testing.T) {
	k := newTestKernel(t)
	k.StartSched()

	m := k.InitMutex()
	var order []int
	orderCh := make(chan int, 2)

	release := make(chan struct{})
	k.NewTask(func(self *sched.Task) {
		k.Acquire(self, m)
		orderCh <- 1
		<-release
		k.Release(self, m)
	}, 5, 0)

	// Give the first task a chance to acquire before the second contends.
	time.Sleep(10 * time.Millisecond)

	k.NewTask(func(self *sched.Task) {
		k.Acquire(self, m)
		orderCh <- 2
		k.Release(self, m)
	}, 5, 0)

	order = append(order, <-orderCh)
	close(release)
	order = append(order, <-orderCh)

	if order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected holder order [1 2], got %v", order)
	}
	if k.Metrics().Snapshot().MutexAcquires != 2 {
		t.Fatalf("expected two mutex acquires, got %+v", k.Metrics().Snapshot())
	}
}

func TestOpenSharedMemoryRoundTripsBetweenTasks(t *testing.T) {
	k := newTestKernel(t)
	k.StartSched()

	received := make(chan string, 1)
	errs := make(chan error, 2)

	k.NewTask(func(self *sched.Task) {
		handle, err := k.OpenSharedMemory(self, "telemetry", 64)
		if err != nil {
			errs <- err
			return
		}
		buf := make([]byte, 16)
		n, err := k.Read(self, handle, buf)
		if err != nil {
			errs <- err
			return
		}
		received <- string(buf[:n])
		errs <- k.Close(self, handle)
	}, 5, 0)

	time.Sleep(10 * time.Millisecond)

	k.NewTask(func(self *sched.Task) {
		handle, err := k.OpenSharedMemory(self, "telemetry", 64)
		if err != nil {
			errs <- err
			return
		}
		if _, err := k.Write(self, handle, []byte("payload")); err != nil {
			errs <- err
			return
		}
		errs <- k.Close(self, handle)
	}, 5, 0)

	select {
	case got := <-received:
		if got != "payload" {
			t.Fatalf("got %q, want %q", got, "payload")
		}
	case <-time.After(time.Second):
		t.Fatal("reader never received the writer's payload")
	}
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("shared memory task failed: %v", err)
		}
	}
}

func TestSdeqAddPopFIFO(t *testing.T) {
	k := newTestKernel(t)

	k.SdeqAdd("events", "first")
	k.SdeqAdd("events", "second")

	got, ok := k.SdeqPop("events")
	if !ok || got != "first" {
		t.Fatalf("SdeqPop = %v, %v; want %q", got, ok, "first")
	}
	got, ok = k.SdeqPop("events")
	if !ok || got != "second" {
		t.Fatalf("SdeqPop = %v, %v; want %q", got, ok, "second")
	}
	if _, ok := k.SdeqPop("events"); ok {
		t.Fatal("expected empty deque after draining both elements")
	}
}

func TestTaskExitClosesItsResourceTable(t *testing.T) {
	k := newTestKernel(t)
	k.StartSched()

	closed := make(chan struct{})
	task := k.NewTask(func(self *sched.Task) {
		r := resource.New(nil, nil, func() error { close(closed); return nil })
		if _, err := k.Open(self, r); err != nil {
			t.Errorf("Open: %v", err)
		}
	}, 5, 0)

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task never exited")
	}
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("expected task exit to close its open resources")
	}
}
