// Package synch provides the kernel's blocking synchronization primitives:
// counting semaphores, locks, condition variables and an optimization barrier.
//
// # Scheduler
//
// The primitives need only a narrow slice of the scheduler, the Scheduler
// interface: turn interrupts off and on, block the calling thread, unblock a
// waiting one, and ask whether the caller is in an external interrupt
// handler. *thread.Registry implements it.
//
// Go has no implicit "current thread", so every operation takes the caller's
// thread.Handle as self.
//
// # Wake Order
//
// Every waiter queue is strict FIFO. Semaphore.Up hands its permit straight
// to the longest waiter instead of incrementing the value, so a thread that
// arrives later can never overtake one that is already asleep.
//
// # Context Rules
//
// Down, Acquire, Wait and Signal may not run inside an external interrupt
// handler; doing so is a kernel panic. TryDown, TryAcquire and Up never sleep
// and are safe there.
//
// # Usage Example
//
//	var mu synch.Lock
//	var nonEmpty synch.Condition
//	mu.Init(threads)
//	nonEmpty.Init(threads)
//
//	mu.Acquire(self)
//	for queue.Len() == 0 {
//	    nonEmpty.Wait(self, &mu)
//	}
//	item := queue.Pop()
//	mu.Release(self)
package synch

import (
	"github.com/joshuapare/kernkit/kernel/intr"
	"github.com/joshuapare/kernkit/kernel/thread"
)

// Scheduler is the thread-blocking collaborator the primitives consume.
type Scheduler interface {
	// DisableInterrupts turns interrupts off for self and returns the old level.
	DisableInterrupts(self thread.Handle) intr.Level
	// SetInterruptLevel restores a level returned by DisableInterrupts.
	SetInterruptLevel(self thread.Handle, level intr.Level)
	// Block sleeps until Unblock(self). Interrupts must be off.
	Block(self thread.Handle)
	// Unblock wakes a blocked thread without sleeping.
	Unblock(h thread.Handle)
	// InInterrupt reports whether self is in an external interrupt handler.
	InInterrupt(self thread.Handle) bool
}

// Spawner starts kernel threads. Used by the self test.
type Spawner interface {
	Scheduler
	Spawn(name string, fn func(self thread.Handle)) thread.Handle
	Join(h thread.Handle)
}

var _ Spawner = (*thread.Registry)(nil)
