package sync2

import "sync"

// Mutex is a priority-donating, ownership-tracked lock with a FIFO wait
// queue, following spec section 4.D's acquire/release algorithm.
type Mutex struct {
	mu      sync.Mutex
	holder  Task
	waiting []Task
}

// NewMutex returns a free mutex, equivalent to init_mutex on a
// zero-valued Mutex.
func NewMutex() *Mutex { return &Mutex{} }

// HolderTask implements Lockable.
func (m *Mutex) HolderTask() (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holder == nil {
		return nil, false
	}
	return m.holder, true
}

// Acquire blocks self until it becomes the holder. If the mutex is
// free, self becomes holder immediately. Otherwise self joins the wait
// queue, donates its priority up the blocked-on chain, and parks.
func (m *Mutex) Acquire(self Task) {
	m.mu.Lock()
	if m.holder == nil {
		m.holder = self
		m.mu.Unlock()
		return
	}

	m.waiting = append(m.waiting, self)
	holder := m.holder
	self.MarkBlocked(m)
	m.mu.Unlock()

	if donate(self, holder, self.EffectivePriority(), m) {
		return
	}

	for {
		self.Park()
		m.mu.Lock()
		isHolder := m.holder == self
		m.mu.Unlock()
		if isHolder {
			return
		}
	}
}

// Release hands the mutex to the next waiter, if any, or frees it.
// Calling Release from a task that is not the current holder is a
// programming error and is fatal.
func (m *Mutex) Release(self Task) {
	m.mu.Lock()
	if m.holder != self {
		m.mu.Unlock()
		fatalNotHolder("Mutex.Release")
		return
	}
	self.RevokeDonation(m)

	if len(m.waiting) == 0 {
		m.holder = nil
		m.mu.Unlock()
		return
	}
	next := m.waiting[0]
	m.waiting = m.waiting[1:]
	m.holder = next
	m.mu.Unlock()

	next.MarkReady()
	next.Wake()
}

// AbandonBy implicitly releases the mutex on behalf of a task that is
// exiting while still holding it, per the abandoned-lock scenario.
// No-op if t does not currently hold the mutex.
func (m *Mutex) AbandonBy(t Task) {
	m.mu.Lock()
	if m.holder != t {
		m.mu.Unlock()
		return
	}
	t.RevokeDonation(m)

	if len(m.waiting) == 0 {
		m.holder = nil
		m.mu.Unlock()
		return
	}
	next := m.waiting[0]
	m.waiting = m.waiting[1:]
	m.holder = next
	m.mu.Unlock()

	next.MarkReady()
	next.Wake()
}

// Waiting reports the current wait-queue length, for invariant tests.
func (m *Mutex) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiting)
}
