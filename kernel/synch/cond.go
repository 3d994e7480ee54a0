package synch

import (
	"sync/atomic"

	"github.com/joshuapare/kernkit/kernel/debug"
	"github.com/joshuapare/kernkit/kernel/thread"
)

// Condition lets code signal a condition and cooperating code receive the
// signal and act on it. It is always used together with a Lock, supplied on
// each call; the waiter queue is only touched by the lock's holder.
//
// Each Wait parks on its own single-use semaphore, so a Signal wakes exactly
// one specific waiter no matter how the scheduler interleaves the threads.
type Condition struct {
	sched   Scheduler
	waiters fifo[*Semaphore]
	nwait   atomic.Int32
}

// NewCondition returns a condition with no waiters.
func NewCondition(sched Scheduler) *Condition {
	c := &Condition{}
	c.Init(sched)
	return c
}

// Init empties the waiter queue.
func (c *Condition) Init(sched Scheduler) {
	debug.Assert(sched != nil, "cond_init: nil scheduler")
	c.sched = sched
	c.waiters = fifo[*Semaphore]{}
	c.nwait.Store(0)
}

// Wait atomically releases lock and waits for a Signal, then reacquires lock
// before returning. self must hold lock.
func (c *Condition) Wait(self thread.Handle, lock *Lock) {
	debug.Assert(!c.sched.InInterrupt(self), "cond_wait: called from interrupt context")
	debug.Assert(lock.HeldBy(self), "cond_wait: lock not held by thread %d", self)

	w := NewSemaphore(c.sched, 0)
	c.waiters.push(w)
	c.nwait.Add(1)
	lock.Release(self)
	w.Down(self)
	lock.Acquire(self)
}

// Signal wakes the oldest waiter, if any. self must hold lock.
func (c *Condition) Signal(self thread.Handle, lock *Lock) {
	debug.Assert(!c.sched.InInterrupt(self), "cond_signal: called from interrupt context")
	debug.Assert(lock.HeldBy(self), "cond_signal: lock not held by thread %d", self)

	if c.waiters.len() > 0 {
		c.nwait.Add(-1)
		c.waiters.pop().Up(self)
	}
}

// Broadcast wakes every waiter queued when it is called, oldest first.
// self must hold lock, so nobody can join the queue meanwhile.
func (c *Condition) Broadcast(self thread.Handle, lock *Lock) {
	debug.Assert(lock.HeldBy(self), "cond_broadcast: lock not held by thread %d", self)
	for c.waiters.len() > 0 {
		c.Signal(self, lock)
	}
}

// Waiters returns the number of threads in Wait that have not been signalled.
func (c *Condition) Waiters() int { return int(c.nwait.Load()) }
