package synch

import (
	"sync/atomic"

	"github.com/joshuapare/kernkit/kernel/debug"
	"github.com/joshuapare/kernkit/kernel/thread"
)

// Semaphore is a nonnegative integer together with two atomic operators:
//
//   - Down or "P": wait for the value to become positive, then decrement it.
//   - Up or "V": increment the value (or wake one waiting thread).
//
// The value and waiter queue are only changed with interrupts off.
type Semaphore struct {
	sched   Scheduler
	value   atomic.Uint32
	waiters fifo[thread.Handle]
	nwait   atomic.Int32
}

// NewSemaphore returns a semaphore initialized to value.
func NewSemaphore(sched Scheduler, value uint) *Semaphore {
	s := &Semaphore{}
	s.Init(sched, value)
	return s
}

// Init sets the semaphore's initial value and empties its waiter queue.
func (s *Semaphore) Init(sched Scheduler, value uint) {
	debug.Assert(sched != nil, "sema_init: nil scheduler")
	s.sched = sched
	s.value.Store(uint32(value))
	s.waiters = fifo[thread.Handle]{}
	s.nwait.Store(0)
}

// Down waits for the value to become positive and then decrements it. If the
// value is zero, self sleeps until an Up hands it the permit directly.
// May not be called from an interrupt handler.
func (s *Semaphore) Down(self thread.Handle) {
	debug.Assert(!s.sched.InInterrupt(self), "sema_down: called from interrupt context")

	old := s.sched.DisableInterrupts(self)
	if v := s.value.Load(); v > 0 {
		s.value.Store(v - 1)
	} else {
		s.waiters.push(self)
		s.nwait.Add(1)
		s.sched.Block(self)
	}
	s.sched.SetInterruptLevel(self, old)
}

// TryDown decrements the value if it is positive and reports whether it did.
// It never sleeps, so it is safe from an interrupt handler.
func (s *Semaphore) TryDown(self thread.Handle) bool {
	old := s.sched.DisableInterrupts(self)
	defer s.sched.SetInterruptLevel(self, old)

	v := s.value.Load()
	if v == 0 {
		return false
	}
	s.value.Store(v - 1)
	return true
}

// Up wakes the longest-waiting thread, if any, passing it the permit;
// otherwise it increments the value. Safe from an interrupt handler.
func (s *Semaphore) Up(self thread.Handle) {
	old := s.sched.DisableInterrupts(self)
	if s.waiters.len() > 0 {
		h := s.waiters.pop()
		s.nwait.Add(-1)
		s.sched.Unblock(h)
	} else {
		s.value.Add(1)
	}
	s.sched.SetInterruptLevel(self, old)
}

// Value returns the current value.
func (s *Semaphore) Value() uint { return uint(s.value.Load()) }

// Waiters returns the number of threads sleeping in Down.
func (s *Semaphore) Waiters() int { return int(s.nwait.Load()) }
