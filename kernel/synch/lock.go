package synch

import (
	"sync/atomic"

	"github.com/joshuapare/kernkit/kernel/debug"
	"github.com/joshuapare/kernkit/kernel/thread"
)

// Lock can be held by at most one thread at a time. It is a semaphore with
// an initial value of 1 plus an owner: only the thread that acquired a lock
// may release it, and a thread may not acquire a lock it already holds.
type Lock struct {
	holder atomic.Uint32
	sema   Semaphore
}

// NewLock returns an unheld lock.
func NewLock(sched Scheduler) *Lock {
	l := &Lock{}
	l.Init(sched)
	return l
}

// Init makes l an unheld lock.
func (l *Lock) Init(sched Scheduler) {
	l.holder.Store(uint32(thread.None))
	l.sema.Init(sched, 1)
}

// Acquire sleeps until l is available, then takes it for self.
func (l *Lock) Acquire(self thread.Handle) {
	debug.Assert(!l.HeldBy(self), "lock_acquire: lock already held by thread %d", self)
	l.sema.Down(self)
	l.holder.Store(uint32(self))
}

// TryAcquire takes l for self if it is free and reports whether it did.
// Never sleeps.
func (l *Lock) TryAcquire(self thread.Handle) bool {
	debug.Assert(!l.HeldBy(self), "lock_try_acquire: lock already held by thread %d", self)
	if !l.sema.TryDown(self) {
		return false
	}
	l.holder.Store(uint32(self))
	return true
}

// Release gives up l, which self must hold.
func (l *Lock) Release(self thread.Handle) {
	debug.Assert(l.HeldBy(self), "lock_release: thread %d does not hold the lock (holder %d)", self, l.Holder())
	l.holder.Store(uint32(thread.None))
	l.sema.Up(self)
}

// HeldBy reports whether self holds l. Asking about another thread would be
// racy, so this is the only ownership query besides Holder.
func (l *Lock) HeldBy(self thread.Handle) bool {
	return self != thread.None && thread.Handle(l.holder.Load()) == self
}

// Holder returns the current holder, or thread.None. Diagnostic only.
func (l *Lock) Holder() thread.Handle { return thread.Handle(l.holder.Load()) }

// Waiters returns the number of threads sleeping in Acquire.
func (l *Lock) Waiters() int { return l.sema.Waiters() }
