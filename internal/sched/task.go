// Package sched implements the preemptive, priority-driven task
// scheduler: ready queue, periodic wakeup wheel, current-task pointer,
// yield, switch, and exit, following spec section 4.F.
//
// A Task's "register context" has no Go analog worth faking: instead
// each Task runs its entry function on its own goroutine, parked on a
// channel until the scheduler dispatches it. A context switch is a
// Wake of the incoming task paired with a Park of the outgoing one;
// the goroutine scheduler underneath does the actual stack-pointer
// swap, which is the same job a Cortex-M's PendSV handler does, just
// one layer further down.
package sched

import (
	"sync"

	"github.com/f4os-go/corertos/internal/sync2"
)

// State mirrors the task lifecycle in spec section 4.F.
type State int

const (
	StateReady State = iota
	StateRunning
	StateBlockedOnMutex
	StateSleeping
	StateZombie
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateBlockedOnMutex:
		return "BLOCKED_ON_MUTEX"
	case StateSleeping:
		return "SLEEPING"
	case StateZombie:
		return "ZOMBIE"
	default:
		return "UNKNOWN"
	}
}

// abandoner is satisfied by *sync2.Mutex and *sync2.Semaphore: a lock a
// task holds that must be forcibly released on task_exit.
type abandoner interface {
	AbandonBy(t sync2.Task)
}

// Task is one schedulable unit of execution.
type Task struct {
	id     uint64
	sched  *Scheduler
	fn     func(*Task)
	stack  []byte
	period int // ticks, 0 = aperiodic

	mu        sync.Mutex
	base      uint8
	donated   map[sync2.Lockable]uint8
	state     State
	blockedOn sync2.Lockable
	heldLocks []abandoner

	resume chan struct{}
	exited chan struct{}

	// Stdin/Stdout/Stderr are resource-table handles. They start at -1;
	// the kernel does not open standard streams itself, so whoever opens
	// a task's streams stores the handles here.
	Stdin, Stdout, Stderr int
}

func newTask(s *Scheduler, id uint64, fn func(*Task), priority uint8, periodTicks int, stack []byte) *Task {
	return &Task{
		id:      id,
		sched:   s,
		fn:      fn,
		stack:   stack,
		period:  periodTicks,
		base:    priority,
		donated: map[sync2.Lockable]uint8{},
		state:   StateReady,
		resume:  make(chan struct{}, 1),
		exited:  make(chan struct{}),
		Stdin:   -1,
		Stdout:  -1,
		Stderr:  -1,
	}
}

// ID returns the task's unique identifier.
func (t *Task) ID() uint64 { return t.id }

// BasePriority returns the priority the task was created with.
func (t *Task) BasePriority() uint8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.base
}

// EffectivePriority is the base priority raised by any donation
// currently in effect.
func (t *Task) EffectivePriority() uint8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	eff := t.base
	for _, p := range t.donated {
		if p > eff {
			eff = p
		}
	}
	return eff
}

// Donate implements sync2.Task.
func (t *Task) Donate(priority uint8, source sync2.Lockable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.donated[source] = priority
}

// RevokeDonation implements sync2.Task.
func (t *Task) RevokeDonation(source sync2.Lockable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.donated, source)
}

// MarkBlocked implements sync2.Task.
func (t *Task) MarkBlocked(on sync2.Lockable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blockedOn = on
	t.state = StateBlockedOnMutex
}

// MarkReady implements sync2.Task. It both clears the blocked state and
// re-enqueues the task onto the scheduler's ready queue, since the only
// caller is a lock handing itself to this task as the new holder.
func (t *Task) MarkReady() {
	t.mu.Lock()
	t.blockedOn = nil
	t.state = StateReady
	t.mu.Unlock()
	t.sched.enqueueReady(t)
}

// BlockedOn implements sync2.Task.
func (t *Task) BlockedOn() (sync2.Lockable, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blockedOn, t.blockedOn != nil
}

// Park suspends the calling goroutine until Wake is called. Used both
// by the scheduler's dispatch loop and, through the sync2.Task
// interface, by Mutex/Semaphore to block an acquiring task.
func (t *Task) Park() {
	<-t.resume
}

// Wake resumes a parked task. Safe to call even if the task is not
// currently parked: the resume channel is buffered by one.
func (t *Task) Wake() {
	select {
	case t.resume <- struct{}{}:
	default:
	}
}

// State returns the task's current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// trackLock records a lock this task now holds, so task_exit can
// abandon it automatically.
func (t *Task) trackLock(l abandoner) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.heldLocks = append(t.heldLocks, l)
}

func (t *Task) untrackLock(l abandoner) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, h := range t.heldLocks {
		if h == l {
			t.heldLocks = append(t.heldLocks[:i], t.heldLocks[i+1:]...)
			return
		}
	}
}

func (t *Task) takeHeldLocks() []abandoner {
	t.mu.Lock()
	defer t.mu.Unlock()
	locks := t.heldLocks
	t.heldLocks = nil
	return locks
}

// AcquireMutex acquires m on this task's behalf and tracks it for
// automatic release on task_exit.
func (t *Task) AcquireMutex(m *sync2.Mutex) {
	m.Acquire(t)
	t.trackLock(m)
}

// ReleaseMutex releases m, which must currently be held by this task.
func (t *Task) ReleaseMutex(m *sync2.Mutex) {
	m.Release(t)
	t.untrackLock(m)
}

// AcquireSemaphore acquires s on this task's behalf.
func (t *Task) AcquireSemaphore(s *sync2.Semaphore) {
	s.Acquire(t)
	t.trackLock(s)
}

// ReleaseSemaphore releases s, which must currently be held by this
// task.
func (t *Task) ReleaseSemaphore(s *sync2.Semaphore) {
	s.Release(t)
	t.untrackLock(s)
}

// Yield asks the scheduler to run a higher-or-equal priority ready
// task in this task's place, parking until it is chosen again. A no-op
// if nothing of at least equal priority is ready.
func (t *Task) Yield() {
	t.sched.yield(t)
}

// Done returns a channel closed once the task has fully exited.
func (t *Task) Done() <-chan struct{} {
	return t.exited
}
