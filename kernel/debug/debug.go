// Package debug implements the kernel's fatal-error path. A kernel PANIC is a
// Go panic carrying a *KernelPanic, logged before it unwinds. Code that hosts
// the kernel (tests, the CLI) can catch it with Recover; nothing inside the
// kernel ever does.
package debug

import (
	"errors"
	"fmt"

	"github.com/joshuapare/kernkit/internal/logger"
)

var (
	// ErrProgramming classifies panics caused by a kernel defect: double lock
	// acquisition, release by a non-holder, blocking in interrupt context,
	// freeing memory the allocator does not own.
	ErrProgramming = errors.New("kernel: programming error")

	// ErrOutOfMemory classifies panics raised because an allocation marked
	// PAL_ASSERT could not be satisfied.
	ErrOutOfMemory = errors.New("kernel: out of memory")
)

// KernelPanic is the value a kernel PANIC unwinds with.
type KernelPanic struct {
	Kind error  // ErrProgramming or ErrOutOfMemory
	Msg  string // formatted message
}

func (p *KernelPanic) Error() string {
	return "Kernel PANIC: " + p.Msg
}

func (p *KernelPanic) Unwrap() error { return p.Kind }

// Panic halts the kernel with a message classified by kind.
func Panic(kind error, format string, args ...any) {
	p := &KernelPanic{Kind: kind, Msg: fmt.Sprintf(format, args...)}
	logger.Error("kernel panic", "kind", kind, "msg", p.Msg)
	panic(p)
}

// Assert panics with ErrProgramming when cond is false.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		Panic(ErrProgramming, "assertion failed: "+format, args...)
	}
}

// NotReached marks code that a correct kernel never executes.
func NotReached(format string, args ...any) {
	Panic(ErrProgramming, "executed unreachable code: "+format, args...)
}

// Recover runs fn and returns the kernel panic it raised, or nil if it
// returned normally. Panics that are not kernel panics propagate.
func Recover(fn func()) (kp *KernelPanic) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		p, ok := r.(*KernelPanic)
		if !ok {
			panic(r)
		}
		kp = p
	}()
	fn()
	return nil
}
