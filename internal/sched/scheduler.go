package sched

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/f4os-go/corertos/internal/archport"
	"github.com/f4os-go/corertos/internal/constants"
)

// Metrics is the narrow slice of corertos.Observer the scheduler
// reports into; kept local so this package doesn't import the root
// package (which imports sched).
type Metrics interface {
	ObserveContextSwitch()
	ObserveTaskLifecycle(created bool)
	ObserveTick()
}

type noopMetrics struct{}

func (noopMetrics) ObserveContextSwitch()     {}
func (noopMetrics) ObserveTaskLifecycle(bool) {}
func (noopMetrics) ObserveTick()              {}

// ResourceCloser is invoked by task_exit to close every resource handle
// a task still has open. The kernel wires this once it builds the
// resource table, keeping this package free of an internal/resource
// import.
type ResourceCloser func(t *Task)

// Allocator is the subset of *mm.Allocator the scheduler needs to
// charge task stacks against the kernel arena.
type Allocator interface {
	Kmalloc(size int) []byte
	Kfree(payload []byte)
}

// Scheduler is a single-core, priority-driven, preemptive scheduler.
type Scheduler struct {
	port      *archport.Port
	allocator Allocator
	metrics   Metrics
	closer    ResourceCloser

	stackSize  int
	tickPeriod int // informational; ticks are counted, not timed, by this type

	mu         sync.Mutex
	ready      map[uint8][]*Task
	wheel      *wakeupWheel
	tasks      map[uint64]*Task
	current    *Task
	idle       *Task
	totalTasks int
	switching  bool

	nextID atomic.Uint64

	stopTick chan struct{}
}

// New creates a Scheduler. allocator charges/releases task stacks
// against the kernel arena; metrics may be nil.
func New(port *archport.Port, allocator Allocator, metrics Metrics) *Scheduler {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Scheduler{
		port:      port,
		allocator: allocator,
		metrics:   metrics,
		stackSize: constants.DefaultStackSize,
		ready:     make(map[uint8][]*Task),
		wheel:     newWakeupWheel(constants.SchedWheelSize),
		tasks:     make(map[uint64]*Task),
	}
}

// SetResourceCloser installs the hook task_exit uses to close every
// handle still open in a task's resource table.
func (s *Scheduler) SetResourceCloser(c ResourceCloser) {
	s.closer = c
}

// NewTask allocates a task record and stack from the kernel arena and
// installs fn to run at the given priority. periodTicks == 0 means
// aperiodic: the task enters the ready queue immediately. Returns nil
// on kernel-arena exhaustion.
func (s *Scheduler) NewTask(fn func(*Task), priority uint8, periodTicks int) *Task {
	stack := s.allocator.Kmalloc(s.stackSize)
	if stack == nil {
		return nil
	}
	id := s.nextID.Add(1)
	t := newTask(s, id, fn, priority, periodTicks, stack)

	s.mu.Lock()
	s.tasks[id] = t
	s.totalTasks++
	if periodTicks > 0 {
		t.state = StateSleeping
		s.wheel.schedule(t, periodTicks)
	} else {
		s.pushReadyLocked(t)
	}
	s.mu.Unlock()

	s.metrics.ObserveTaskLifecycle(true)
	go s.runTask(t)
	return t
}

// newIdleTask installs the mandatory lowest-priority task that keeps
// the ready queue from ever running dry. It is not placed in the ready
// buckets when created; StartSched and taskExit fall back to it when the
// buckets are empty, and like any task it enters its bucket when it
// yields the CPU.
func (s *Scheduler) newIdleTask() *Task {
	stack := s.allocator.Kmalloc(s.stackSize)
	id := s.nextID.Add(1)
	t := newTask(s, id, func(self *Task) {
		for {
			time.Sleep(constants.DefaultTickPeriod)
			self.Yield()
		}
	}, constants.IdleTaskPriority, 0, stack)
	t.state = StateReady
	s.mu.Lock()
	s.tasks[id] = t
	s.mu.Unlock()
	go func() {
		t.Park()
		t.fn(t)
	}()
	return t
}

func (s *Scheduler) runTask(t *Task) {
	t.Park()
	t.fn(t)
	s.taskExit(t)
}

// StartSched marks the scheduler live, installs the idle task, starts
// servicing ticks from the port, and dispatches the first task. Unlike
// the original's noreturn C function, this returns once dispatch has
// started: the caller's goroutine is free to do other bookkeeping,
// since Go task goroutines don't need a host thread to "never return".
func (s *Scheduler) StartSched() {
	s.mu.Lock()
	if s.switching {
		s.mu.Unlock()
		return
	}
	s.switching = true
	s.mu.Unlock()

	s.idle = s.newIdleTask()

	s.stopTick = make(chan struct{})
	go s.tickLoop()

	s.mu.Lock()
	first := s.popHighestReadyLocked()
	if first == nil {
		first = s.idle
	}
	first.setState(StateRunning)
	s.current = first
	s.mu.Unlock()
	first.Wake()
}

// Stop halts tick servicing. Tasks already dispatched keep running;
// this is for orderly shutdown in tests.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop := s.stopTick
	s.switching = false
	s.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

func (s *Scheduler) tickLoop() {
	ticks := s.port.Ticks()
	for {
		select {
		case <-s.stopTick:
			return
		case <-ticks:
			s.tickHandler()
		}
	}
}

// tickHandler advances the wakeup wheel and promotes any task whose
// wake has arrived to the ready queue. It does not itself force a
// context switch: on real hardware the interrupt return path performs
// that; here the promoted task simply becomes available the next time
// anything calls Yield (including idle's own per-tick poll).
func (s *Scheduler) tickHandler() {
	s.mu.Lock()
	due := s.wheel.advance()
	for _, t := range due {
		t.setState(StateReady)
		s.pushReadyLocked(t)
	}
	s.mu.Unlock()
	s.metrics.ObserveTick()
}

func (s *Scheduler) pushReadyLocked(t *Task) {
	p := t.EffectivePriority()
	s.ready[p] = append(s.ready[p], t)
}

func (s *Scheduler) enqueueReady(t *Task) {
	s.mu.Lock()
	s.pushReadyLocked(t)
	s.mu.Unlock()
}

func (s *Scheduler) popHighestReadyLocked() *Task {
	found := false
	var bestPrio uint8
	for p, q := range s.ready {
		if len(q) == 0 {
			continue
		}
		if !found || p > bestPrio {
			bestPrio = p
			found = true
		}
	}
	if !found {
		return nil
	}
	q := s.ready[bestPrio]
	t := q[0]
	s.ready[bestPrio] = q[1:]
	return t
}

func (s *Scheduler) removeFromReadyLocked(t *Task) bool {
	for p, q := range s.ready {
		for i, c := range q {
			if c == t {
				s.ready[p] = append(q[:i], q[i+1:]...)
				return true
			}
		}
	}
	return false
}

// yield is the voluntary preemption point: self offers the CPU to the
// highest-priority ready task. If that task's priority is strictly
// lower than self's, the offer is declined and yield is a no-op.
func (s *Scheduler) yield(self *Task) {
	s.mu.Lock()
	if !s.switching {
		s.mu.Unlock()
		return
	}
	next := s.popHighestReadyLocked()
	if next == nil {
		s.mu.Unlock()
		return
	}
	if next.EffectivePriority() < self.EffectivePriority() {
		s.pushReadyLocked(next)
		s.mu.Unlock()
		return
	}
	self.setState(StateReady)
	s.pushReadyLocked(self)
	next.setState(StateRunning)
	s.current = next
	s.mu.Unlock()

	s.metrics.ObserveContextSwitch()
	next.Wake()
	self.Park()
}

// TaskSwitch forces an immediate switch to target, bypassing normal
// selection. Kept per spec as a privileged/diagnostic escape hatch,
// not something application tasks should call routinely. Passing nil
// is equivalent to Yield. Returns an error if target is not runnable.
func (s *Scheduler) TaskSwitch(self *Task, target *Task) error {
	if target == nil {
		s.yield(self)
		return nil
	}
	s.mu.Lock()
	if !s.switching {
		s.mu.Unlock()
		return fmt.Errorf("sched: scheduler not running")
	}
	if target == self {
		s.mu.Unlock()
		return nil
	}
	if target.State() != StateReady {
		s.mu.Unlock()
		return fmt.Errorf("sched: task %d is not runnable", target.ID())
	}
	s.removeFromReadyLocked(target)
	self.setState(StateReady)
	s.pushReadyLocked(self)
	target.setState(StateRunning)
	s.current = target
	s.mu.Unlock()

	s.metrics.ObserveContextSwitch()
	target.Wake()
	self.Park()
	return nil
}

// taskExit releases every resource a task holds, frees its stack,
// removes it from bookkeeping, and dispatches whatever runs next. The
// calling goroutine (runTask) returns afterward instead of parking
// forever, which is how this package achieves task_exit's "never
// returns to the task" without leaking a goroutine per exited task.
func (s *Scheduler) taskExit(t *Task) {
	for _, l := range t.takeHeldLocks() {
		l.AbandonBy(t)
	}
	if s.closer != nil {
		s.closer(t)
	}
	if t.stack != nil {
		s.allocator.Kfree(t.stack)
	}

	s.mu.Lock()
	delete(s.tasks, t.id)
	s.totalTasks--
	t.setState(StateZombie)
	next := s.popHighestReadyLocked()
	if next == nil {
		next = s.idle
	}
	next.setState(StateRunning)
	s.current = next
	s.mu.Unlock()

	s.metrics.ObserveTaskLifecycle(false)
	s.metrics.ObserveContextSwitch()
	close(t.exited)
	next.Wake()
}

// Abort immediately triggers task_exit semantics for t from outside
// t's own goroutine: used for forceful termination rather than a
// normal return from the task's entry function.
func (s *Scheduler) Abort(t *Task) {
	s.mu.Lock()
	s.removeFromReadyLocked(t)
	s.wheel.remove(t)
	s.mu.Unlock()
	s.taskExit(t)
}

// Current returns the currently running task, or nil if the scheduler
// has not started yet.
func (s *Scheduler) Current() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// TotalTasks returns the number of tasks not in the ZOMBIE state.
func (s *Scheduler) TotalTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalTasks
}

// TaskRunnable reports whether t is in a state the scheduler could
// dispatch it from (READY or RUNNING).
func TaskRunnable(t *Task) bool {
	switch t.State() {
	case StateReady, StateRunning:
		return true
	default:
		return false
	}
}

// TaskCompare orders tasks by effective priority, descending, the same
// order the ready queue serves them in; ties compare by ID so the
// comparison is a strict order for use in sorted containers.
func TaskCompare(a, b *Task) int {
	pa, pb := a.EffectivePriority(), b.EffectivePriority()
	switch {
	case pa > pb:
		return -1
	case pa < pb:
		return 1
	case a.id < b.id:
		return -1
	case a.id > b.id:
		return 1
	default:
		return 0
	}
}
