package sync2

import (
	"testing"
	"time"
)

func TestMutexUncontendedAcquireRelease(t *testing.T) {
	m := NewMutex()
	a := newMockTask(1, 3)

	m.Acquire(a)
	if h, ok := m.HolderTask(); !ok || h != a {
		t.Fatal("expected a to be holder")
	}
	m.Release(a)
	if _, ok := m.HolderTask(); ok {
		t.Fatal("expected mutex free after release")
	}
}

func TestMutexFIFOHandoff(t *testing.T) {
	m := NewMutex()
	a := newMockTask(1, 3)
	b := newMockTask(2, 3)

	m.Acquire(a)

	done := make(chan struct{})
	go func() {
		m.Acquire(b)
		close(done)
	}()

	// give b a moment to enqueue
	time.Sleep(10 * time.Millisecond)
	if m.Waiting() != 1 {
		t.Fatalf("expected b enqueued, waiting=%d", m.Waiting())
	}

	m.Release(a)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("b never acquired after a released")
	}
	if h, _ := m.HolderTask(); h != b {
		t.Fatal("expected b to be holder after handoff")
	}
}

func TestMutexPriorityDonation(t *testing.T) {
	m := NewMutex()
	low := newMockTask(1, 1)

	m.Acquire(low)

	high := newMockTask(2, 9)
	done := make(chan struct{})
	go func() {
		m.Acquire(high)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	if low.EffectivePriority() != 9 {
		t.Fatalf("expected low's effective priority donated to 9, got %d", low.EffectivePriority())
	}

	m.Release(low)
	<-done

	if low.EffectivePriority() != 1 {
		t.Fatalf("expected donation revoked after release, got %d", low.EffectivePriority())
	}
}

func TestMutexReleaseByNonHolderIsFatal(t *testing.T) {
	fatal := make(chan string, 1)
	restore := installPanicHook(t, fatal)
	defer restore()

	m := NewMutex()
	a := newMockTask(1, 1)
	b := newMockTask(2, 1)
	m.Acquire(a)
	m.Release(b)

	select {
	case msg := <-fatal:
		if msg == "" {
			t.Fatal("expected a diagnostic message")
		}
	default:
		t.Fatal("expected release by non-holder to report fatal")
	}
}

func TestMutexAbandonOnExit(t *testing.T) {
	m := NewMutex()
	a := newMockTask(1, 1)
	b := newMockTask(2, 1)

	m.Acquire(a)

	done := make(chan struct{})
	go func() {
		m.Acquire(b)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)

	m.AbandonBy(a)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("b never acquired after a's lock was abandoned")
	}
}

func TestMutexDeadlockCycleIsFatal(t *testing.T) {
	fatal := make(chan string, 1)
	restore := installPanicHook(t, fatal)
	defer restore()

	m1 := NewMutex()
	m2 := NewMutex()
	a := newMockTask(1, 1)
	b := newMockTask(2, 1)

	m1.Acquire(a)
	m2.Acquire(b)

	go m1.Acquire(b) // b waits on m1 held by a
	time.Sleep(10 * time.Millisecond)

	m2.Acquire(a) // a waits on m2 held by b -> cycle

	select {
	case msg := <-fatal:
		if msg == "" {
			t.Fatal("expected deadlock diagnostic")
		}
	default:
		t.Fatal("expected deadlock cycle to be reported fatal")
	}
}
