// Package thread is the scheduler surface the synchronization primitives
// depend on: a registry of kernel threads addressed by index-based handles,
// with block and unblock operations and the interrupt controller they share.
//
// Each kernel thread runs on its own goroutine. Waiter queues hold Handles,
// never pointers, so a thread's lifetime is owned by the Registry alone.
// Handles are never reused; a registry lives as long as the kernel.
package thread

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joshuapare/kernkit/kernel/debug"
	"github.com/joshuapare/kernkit/kernel/intr"
)

// Handle identifies a thread in a Registry. The zero Handle is no thread.
type Handle uint32

// None is the zero handle.
const None Handle = 0

// Status is a thread's scheduling state.
type Status int32

const (
	// Running threads are executing (or runnable; there is no run queue here).
	Running Status = iota
	// Ready threads have been unblocked and not yet resumed.
	Ready
	// Blocked threads are parked in Block waiting for Unblock.
	Blocked
	// Dying threads have returned from their function.
	Dying
)

var statusNames = [...]string{"running", "ready", "blocked", "dying"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// thread is a registry slot.
type thread struct {
	name   string
	status atomic.Int32
	wake   chan struct{} // one pending wakeup at most
	done   chan struct{} // closed when a spawned thread exits; nil otherwise
}

// Registry owns every thread in the kernel.
type Registry struct {
	intr *intr.Controller

	mu      sync.RWMutex
	threads []*thread // index = handle - 1

	live sync.WaitGroup // spawned threads still running
}

// NewRegistry returns an empty registry whose threads share ctl.
func NewRegistry(ctl *intr.Controller) *Registry {
	if ctl == nil {
		ctl = intr.New()
	}
	return &Registry{intr: ctl}
}

// Interrupts returns the controller shared by the registry's threads.
func (r *Registry) Interrupts() *intr.Controller { return r.intr }

// Register adds a thread for a goroutine that already exists (the initial
// kernel thread, a test's goroutine) and returns its handle.
func (r *Registry) Register(name string) Handle {
	return r.add(name, nil)
}

func (r *Registry) add(name string, done chan struct{}) Handle {
	t := &thread{name: name, wake: make(chan struct{}, 1), done: done}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads = append(r.threads, t)
	return Handle(len(r.threads))
}

func (r *Registry) lookup(h Handle) *thread {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h == None || int(h) > len(r.threads) {
		debug.Panic(debug.ErrProgramming, "thread: invalid handle %d", h)
	}
	return r.threads[h-1]
}

// Spawn starts fn on a new kernel thread named name and returns its handle.
// fn receives the new thread's own handle.
func (r *Registry) Spawn(name string, fn func(self Handle)) Handle {
	done := make(chan struct{})
	h := r.add(name, done)
	r.live.Add(1)
	go func() {
		defer r.live.Done()
		defer close(done)
		defer r.lookup(h).status.Store(int32(Dying))
		fn(h)
	}()
	return h
}

// Join waits for the spawned thread h to finish.
func (r *Registry) Join(h Handle) {
	t := r.lookup(h)
	debug.Assert(t.done != nil, "thread_join: %q was not spawned", t.name)
	<-t.done
}

// Wait waits for every spawned thread to finish.
func (r *Registry) Wait() { r.live.Wait() }

// Len returns the number of registered threads.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.threads)
}

// Name returns h's name.
func (r *Registry) Name(h Handle) string { return r.lookup(h).name }

// Status returns h's scheduling state.
func (r *Registry) Status(h Handle) Status {
	return Status(r.lookup(h).status.Load())
}

// Block puts self to sleep until Unblock(self). Interrupts must be off and
// self must not be in an external interrupt handler. The CPU is released
// while self sleeps and taken back before Block returns, so interrupts are
// off again on return.
func (r *Registry) Block(self Handle) {
	o := intr.Owner(self)
	debug.Assert(!r.intr.Context(o), "thread_block: called from interrupt context")
	debug.Assert(r.intr.Get(o) == intr.Off, "thread_block: interrupts on")

	t := r.lookup(self)
	t.status.Store(int32(Blocked))
	r.intr.Enable(o)
	<-t.wake
	r.intr.Disable(o)
	t.status.Store(int32(Running))
}

// Unblock makes the blocked thread h runnable. It does not preempt the
// caller, so it is safe from interrupt handlers.
func (r *Registry) Unblock(h Handle) {
	t := r.lookup(h)
	debug.Assert(Status(t.status.Load()) == Blocked, "thread_unblock: %q is %s", t.name, Status(t.status.Load()))
	t.status.Store(int32(Ready))
	t.wake <- struct{}{}
}

// DisableInterrupts turns interrupts off for self, returning the old level.
func (r *Registry) DisableInterrupts(self Handle) intr.Level {
	return r.intr.Disable(intr.Owner(self))
}

// SetInterruptLevel restores a level returned by DisableInterrupts.
func (r *Registry) SetInterruptLevel(self Handle, level intr.Level) {
	r.intr.SetLevel(intr.Owner(self), level)
}

// InInterrupt reports whether self is running an external interrupt handler.
func (r *Registry) InInterrupt(self Handle) bool {
	return r.intr.Context(intr.Owner(self))
}

// Interrupt runs handler as an external interrupt delivered to self.
func (r *Registry) Interrupt(self Handle, handler func()) {
	r.intr.Raise(intr.Owner(self), handler)
}
