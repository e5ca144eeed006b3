// Package sync2 implements the kernel's ownership-tracked locks: a
// priority-donating Mutex and a simpler Semaphore, both with FIFO wait
// queues, grounded on the acquire/release algorithm in spec section 4.D.
//
// Neither type imports the scheduler package. Instead each blocked or
// donated-to participant is addressed through the Task interface below,
// which internal/sched's Task implements; this keeps the dependency
// pointing one way (sched -> sync2), the same direction the spec's own
// component table has D underneath F.
package sync2

import (
	"github.com/f4os-go/corertos/internal/diag"
)

func fatalNotHolder(op string) {
	diag.Fatal("sync2: %s called by a task that is not the current holder", op)
}

// Task is the subset of scheduler task behavior a lock needs: identity,
// priority accounting for donation, state transitions, and a park/wake
// pair used to suspend and resume the task's goroutine.
type Task interface {
	ID() uint64
	EffectivePriority() uint8
	Donate(priority uint8, source Lockable)
	RevokeDonation(source Lockable)
	MarkBlocked(on Lockable)
	MarkReady()
	BlockedOn() (Lockable, bool)
	Park()
	Wake()
}

// Lockable is a mutex or semaphore as seen by the donation walk: just
// enough to find out who currently holds it.
type Lockable interface {
	HolderTask() (Task, bool)
}

// donate pushes priority onto holder and, transitively, onto whatever
// holder is itself blocked on, stopping as soon as a link in the chain
// is unblocked. It always walks the full chain rather than stopping
// once donation stops helping, because self reappearing anywhere in it
// means two tasks are each waiting on a lock the other holds — a fatal
// deadlock regardless of priorities. Returns true if it reported one.
func donate(self Task, holder Task, priority uint8, source Lockable) bool {
	t := holder
	seen := map[uint64]bool{self.ID(): true}
	for t != nil {
		if seen[t.ID()] {
			diag.Fatal("sync2: deadlock detected: task %d is blocked on a cycle of locks", self.ID())
			return true
		}
		seen[t.ID()] = true
		if priority > t.EffectivePriority() {
			t.Donate(priority, source)
		}
		blockedOn, blocked := t.BlockedOn()
		if !blocked {
			return false
		}
		next, ok := blockedOn.HolderTask()
		if !ok {
			return false
		}
		t = next
	}
	return false
}
