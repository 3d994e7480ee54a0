// Package intr models the single CPU's interrupt flag. Turning interrupts off
// is how the kernel gets mutual exclusion on a uniprocessor, so Controller
// turns "interrupts off" into a critical section: at most one thread has
// interrupts disabled at a time and everyone else who tries to disable them
// waits until they are turned back on.
//
// Threads are identified by an opaque non-zero Owner id (the thread package
// passes its handles). An Owner of zero is never valid.
package intr

import (
	"sync"
	"sync/atomic"

	"github.com/joshuapare/kernkit/kernel/debug"
)

// Level is the interrupt state as seen by one thread.
type Level int

const (
	// Off means interrupts are disabled.
	Off Level = iota
	// On means interrupts are enabled.
	On
)

func (l Level) String() string {
	if l == Off {
		return "off"
	}
	return "on"
}

// Owner identifies the thread that is running the CPU.
type Owner uint32

// Controller is the CPU's interrupt flag.
type Controller struct {
	cpu     sync.Mutex    // held while some owner has interrupts off
	owner   atomic.Uint32 // owner with interrupts off, 0 if on
	handler atomic.Uint32 // owner currently running an external handler, 0 if none
	raised  atomic.Uint64 // external interrupts delivered
}

// New returns a controller with interrupts on.
func New() *Controller { return &Controller{} }

// Get returns the interrupt level as seen by self.
func (c *Controller) Get(self Owner) Level {
	if self != 0 && Owner(c.owner.Load()) == self {
		return Off
	}
	return On
}

// Disable turns interrupts off for self and returns the previous level.
// Disabling when self already has them off is a no-op.
func (c *Controller) Disable(self Owner) Level {
	debug.Assert(self != 0, "intr_disable: no current thread")
	if Owner(c.owner.Load()) == self {
		return Off
	}
	c.cpu.Lock()
	c.owner.Store(uint32(self))
	return On
}

// Enable turns interrupts back on and returns the previous level. It may not
// be called from an external interrupt handler.
func (c *Controller) Enable(self Owner) Level {
	if Owner(c.owner.Load()) != self {
		return On
	}
	debug.Assert(!c.Context(self), "intr_enable: called from external interrupt context")
	c.owner.Store(0)
	c.cpu.Unlock()
	return Off
}

// SetLevel sets the level for self and returns the previous one.
func (c *Controller) SetLevel(self Owner, level Level) Level {
	if level == On {
		return c.Enable(self)
	}
	return c.Disable(self)
}

// Context reports whether self is running an external interrupt handler.
func (c *Controller) Context(self Owner) bool {
	return self != 0 && Owner(c.handler.Load()) == self
}

// Raise delivers an external interrupt while self is running: handler runs on
// self's behalf with interrupts off and Context(self) reporting true.
// External interrupts do not nest.
func (c *Controller) Raise(self Owner, handler func()) {
	old := c.Disable(self)
	debug.Assert(!c.Context(self), "intr_handler: nested external interrupt")
	c.handler.Store(uint32(self))
	c.raised.Add(1)
	defer func() {
		c.handler.Store(0)
		c.SetLevel(self, old)
	}()
	handler()
}

// Raised returns the number of external interrupts delivered so far.
func (c *Controller) Raised() uint64 { return c.raised.Load() }
