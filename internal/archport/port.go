// Package archport stands in for the bare-metal arch-specific glue the
// core consumes but doesn't own: a timer tick source, a supervisor-call
// entry point, and interrupt mask/unmask. On real hardware these are a
// SysTick handler and an SVC trampoline; here a Port drives the same
// shape with a goroutine and channels so the scheduler can be exercised
// without a board.
package archport

import (
	"sync"
	"sync/atomic"
	"time"
)

// Port is the core's only window onto the outside world: ticks, a
// supervisor-call mechanism, and a critical-section mask. One Port is
// shared by exactly one Kernel.
type Port struct {
	period time.Duration

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	ticks   chan struct{}

	masked atomic.Bool

	svcMu sync.Mutex // serializes supervisor calls, mirroring a real SVC trap being uninterruptible
}

// New creates a Port with the given tick period. A zero period disables
// the background ticker; callers drive Tick manually (useful in tests).
func New(period time.Duration) *Port {
	return &Port{period: period, ticks: make(chan struct{}, 1)}
}

// Ticks returns the channel the scheduler selects on to learn a timer
// interrupt has fired. Buffered by one: a tick that arrives while the
// scheduler hasn't drained the previous one is coalesced, the way a
// real SysTick pending-bit can't queue more than one pending interrupt.
func (p *Port) Ticks() <-chan struct{} {
	return p.ticks
}

// Start begins delivering ticks on Ticks() every period until Stop is
// called. No-op if period is zero or Start was already called.
func (p *Port) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.period == 0 {
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	stop := p.stopCh
	go func() {
		t := time.NewTicker(p.period)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				p.Tick()
			}
		}
	}()
}

// Stop halts background tick delivery.
func (p *Port) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	close(p.stopCh)
	p.started = false
}

// Tick manually injects a single tick, for deterministic tests that
// don't want to race a real timer. A tick arriving while the port is
// masked is dropped.
func (p *Port) Tick() {
	if p.masked.Load() {
		return
	}
	select {
	case p.ticks <- struct{}{}:
	default:
	}
}

// SVC executes fn as a supervisor call: real hardware traps into
// handler mode and runs with interrupts masked relative to the
// triggering task. Port approximates that by serializing all calls to
// SVC against each other; MaskCritical/UnmaskCritical do not take part
// in that serialization.
func (p *Port) SVC(fn func()) {
	p.svcMu.Lock()
	defer p.svcMu.Unlock()
	fn()
}

// MaskCritical disables delivery of further ticks until UnmaskCritical,
// the Go stand-in for disabling the tick interrupt around a pointer-
// mutation critical section (free lists, ready queue, wait queues).
func (p *Port) MaskCritical() {
	p.masked.Store(true)
}

// UnmaskCritical re-enables tick delivery.
func (p *Port) UnmaskCritical() {
	p.masked.Store(false)
}

// Masked reports whether the port is currently inside a critical
// section, for code that wants to assert it never yields while masked.
func (p *Port) Masked() bool {
	return p.masked.Load()
}
