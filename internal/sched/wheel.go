package sched

import "github.com/cloudwego/gopkg/container/ring"

// wheelEntry is one periodic task's pending wake, sitting in a wheel
// slot until its rounds counter reaches zero.
type wheelEntry struct {
	task   *Task
	rounds int
}

// wakeupWheel is a classic timing wheel: slotCount buckets arranged in
// a ring, one tick advances the ring by one slot. A task whose delay
// exceeds one lap is parked in the slot it would land on and carries a
// rounds counter decremented once per lap until it reaches its wake.
type wakeupWheel struct {
	slots *ring.Ring[[]wheelEntry]
	pos   int
}

func newWakeupWheel(slotCount int) *wakeupWheel {
	return &wakeupWheel{slots: ring.NewFromSlice(make([][]wheelEntry, slotCount))}
}

// schedule places t in the wheel to wake after the given number of
// ticks (ticks < 1 is clamped to 1, so nothing wakes on the tick it was
// scheduled in).
func (w *wakeupWheel) schedule(t *Task, ticks int) {
	if ticks < 1 {
		ticks = 1
	}
	n := w.slots.Len()
	offset := ticks % n
	rounds := (ticks - 1) / n
	idx := (w.pos + offset) % n
	item, _ := w.slots.Get(idx)
	*item.Pointer() = append(item.Value(), wheelEntry{task: t, rounds: rounds})
}

// advance moves the wheel forward one tick and returns every task whose
// wake has arrived.
func (w *wakeupWheel) advance() []*Task {
	item, _ := w.slots.Next(w.pos)
	w.pos = item.Index()

	bucket := item.Value()
	var due []*Task
	var remaining []wheelEntry
	for _, e := range bucket {
		if e.rounds <= 0 {
			due = append(due, e.task)
		} else {
			e.rounds--
			remaining = append(remaining, e)
		}
	}
	*item.Pointer() = remaining
	return due
}

// remove drops t from the wheel wherever it's parked, for Abort on a
// still-sleeping periodic task.
func (w *wakeupWheel) remove(t *Task) {
	for i := 0; i < w.slots.Len(); i++ {
		item, _ := w.slots.Get(i)
		bucket := item.Value()
		for j, e := range bucket {
			if e.task == t {
				*item.Pointer() = append(bucket[:j], bucket[j+1:]...)
				return
			}
		}
	}
}
