package sync2

import "sync"

// Semaphore is a binary, ownership-tracked lock with a FIFO wait queue
// and abandon-on-exit semantics, but without Mutex's priority-donation
// bookkeeping — it guards resources (devices, shared memory) rather
// than priority-sensitive critical sections.
type Semaphore struct {
	mu      sync.Mutex
	holder  Task
	waiting []Task
}

// NewSemaphore returns a free semaphore, equivalent to init_semaphore.
func NewSemaphore() *Semaphore { return &Semaphore{} }

// HolderTask implements Lockable.
func (s *Semaphore) HolderTask() (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holder == nil {
		return nil, false
	}
	return s.holder, true
}

// Acquire blocks self until it becomes the holder.
func (s *Semaphore) Acquire(self Task) {
	s.mu.Lock()
	if s.holder == nil {
		s.holder = self
		s.mu.Unlock()
		return
	}
	s.waiting = append(s.waiting, self)
	self.MarkBlocked(s)
	s.mu.Unlock()

	for {
		self.Park()
		s.mu.Lock()
		isHolder := s.holder == self
		s.mu.Unlock()
		if isHolder {
			return
		}
	}
}

// Release hands the semaphore to the next waiter, if any, or frees it.
func (s *Semaphore) Release(self Task) {
	s.mu.Lock()
	if s.holder != self {
		s.mu.Unlock()
		fatalNotHolder("Semaphore.Release")
		return
	}
	if len(s.waiting) == 0 {
		s.holder = nil
		s.mu.Unlock()
		return
	}
	next := s.waiting[0]
	s.waiting = s.waiting[1:]
	s.holder = next
	s.mu.Unlock()

	next.MarkReady()
	next.Wake()
}

// AbandonBy implicitly releases the semaphore on behalf of an exiting
// holder.
func (s *Semaphore) AbandonBy(t Task) {
	s.mu.Lock()
	if s.holder != t {
		s.mu.Unlock()
		return
	}
	if len(s.waiting) == 0 {
		s.holder = nil
		s.mu.Unlock()
		return
	}
	next := s.waiting[0]
	s.waiting = s.waiting[1:]
	s.holder = next
	s.mu.Unlock()

	next.MarkReady()
	next.Wake()
}

// Waiting reports the current wait-queue length.
func (s *Semaphore) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiting)
}
