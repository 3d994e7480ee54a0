package palloc

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/joshuapare/kernkit/internal/format"
	"github.com/joshuapare/kernkit/internal/logger"
	"github.com/joshuapare/kernkit/internal/physmem"
	"github.com/joshuapare/kernkit/kernel/debug"
	"github.com/joshuapare/kernkit/kernel/synch"
	"github.com/joshuapare/kernkit/kernel/thread"
)

// NoLimit leaves the user pool at half of free memory.
const NoLimit = math.MaxInt

// Config tunes the page allocator. The zero value is not useful; start from
// DefaultConfig.
type Config struct {
	// FreeStart is the physical address where usable memory begins, just
	// above the kernel image. Must be page aligned.
	FreeStart uint32

	// NoFreeFill skips filling freed pages with format.FreePattern.
	NoFreeFill bool

	// Logger receives allocator diagnostics. Nil uses the process logger.
	Logger *slog.Logger
}

// DefaultConfig starts free memory at 1 MiB and fills freed pages.
var DefaultConfig = Config{FreeStart: format.LowMemEnd}

// Allocator owns the kernel and user pools.
type Allocator struct {
	mem    *physmem.Memory
	sched  synch.Scheduler
	kernel Pool
	user   Pool
	fill   bool
	log    *slog.Logger
}

// New sets up the page allocator over mem. At most
// userPageLimit pages go to the user pool; pass NoLimit for an even split.
// cfg may be nil for DefaultConfig.
func New(mem *physmem.Memory, sched synch.Scheduler, userPageLimit int, cfg *Config) (*Allocator, error) {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	if userPageLimit < 0 {
		return nil, ErrBadLimit
	}
	if format.PageOffset(cfg.FreeStart) != 0 {
		return nil, fmt.Errorf("palloc: free start %#x: %w", cfg.FreeStart, format.ErrNotPageAligned)
	}

	freeStart := physmem.Ptov(cfg.FreeStart)
	freeEnd := mem.End()
	if cfg.FreeStart >= uint32(mem.Size()) {
		return nil, fmt.Errorf("%w: free memory starts at %#x, RAM ends at %#x",
			ErrNoMemory, cfg.FreeStart, mem.Size())
	}

	freePages := int(freeEnd-freeStart) / format.PageSize
	userPages := min(freePages/2, userPageLimit)
	kernelPages := freePages - userPages

	a := &Allocator{
		mem:   mem,
		sched: sched,
		fill:  !cfg.NoFreeFill,
		log:   cfg.Logger,
	}
	if a.log == nil {
		a.log = logger.Component("palloc")
	}

	if err := a.kernel.init(mem, sched, "kernel pool", freeStart, kernelPages); err != nil {
		return nil, err
	}
	userStart := freeStart + physmem.Addr(kernelPages*format.PageSize)
	if err := a.user.init(mem, sched, "user pool", userStart, userPages); err != nil {
		return nil, err
	}

	for _, p := range []*Pool{&a.kernel, &a.user} {
		a.log.Info(fmt.Sprintf("%d pages available in %s", p.pages, p.name),
			"base", fmt.Sprintf("%#x", uint32(p.base)), "bitmap_pages", p.bitmapPages)
	}
	return a, nil
}

// Memory returns the RAM the pools are carved from.
func (a *Allocator) Memory() *physmem.Memory { return a.mem }

// Kernel returns the kernel pool.
func (a *Allocator) Kernel() *Pool { return &a.kernel }

// User returns the user pool.
func (a *Allocator) User() *Pool { return &a.user }

// PoolOf returns the pool owning va, or nil if va is in neither pool.
func (a *Allocator) PoolOf(va physmem.Addr) *Pool {
	switch {
	case a.kernel.Contains(va):
		return &a.kernel
	case a.user.Contains(va):
		return &a.user
	default:
		return nil
	}
}

// GetPage obtains a single free page and returns its kernel virtual address.
// See GetMultiple.
func (a *Allocator) GetPage(self thread.Handle, flags Flags) physmem.Addr {
	return a.GetMultiple(self, flags, 1)
}

// GetMultiple obtains count contiguous free pages and returns the address of
// the first. Pages come from the user pool with PalUser, else the kernel
// pool. Returns physmem.Null if the pages cannot be allocated, or panics the
// kernel if PalAssert is set. Must not be called from interrupt context.
func (a *Allocator) GetMultiple(self thread.Handle, flags Flags, count int) physmem.Addr {
	debug.Assert(!a.sched.InInterrupt(self), "palloc_get_multiple: called from interrupt context")
	if count <= 0 {
		return physmem.Null
	}

	pool := &a.kernel
	if flags&PalUser != 0 {
		pool = &a.user
	}

	pool.lock.Acquire(self)
	old := a.sched.DisableInterrupts(self)
	idx, ok := pool.used.ScanAndFlip(0, count, false)
	a.sched.SetInterruptLevel(self, old)
	pool.lock.Release(self)

	if !ok {
		pool.failures.Add(1)
		a.log.Debug("out of pages", "pool", pool.name, "count", count, "flags", flags)
		if flags&PalAssert != 0 {
			debug.Panic(debug.ErrOutOfMemory, "palloc_get: out of pages")
		}
		return physmem.Null
	}

	pool.gets.Add(1)
	pages := pool.addr(idx)
	if flags&PalZero != 0 {
		a.mem.Zero(pages, count*format.PageSize)
	}
	return pages
}

// FreePage frees the page at va. See FreeMultiple.
func (a *Allocator) FreePage(self thread.Handle, va physmem.Addr) {
	a.FreeMultiple(self, va, 1)
}

// FreeMultiple frees count pages starting at va, all of which must have come
// from GetPage or GetMultiple. A null va is ignored. Never sleeps, so it may
// be called from an interrupt handler.
func (a *Allocator) FreeMultiple(self thread.Handle, va physmem.Addr, count int) {
	debug.Assert(format.PageOffset(uint32(va)) == 0, "palloc_free_multiple: %#x not page aligned", uint32(va))
	if va == physmem.Null || count == 0 {
		return
	}

	pool := a.PoolOf(va)
	if pool == nil {
		debug.NotReached("palloc_free_multiple: %#x not in any pool", uint32(va))
	}
	idx := pool.index(va)
	debug.Assert(count > 0 && count <= pool.pages-idx,
		"palloc_free_multiple: %d pages at %#x run past the %s", count, uint32(va), pool.name)

	old := a.sched.DisableInterrupts(self)
	if !pool.used.All(idx, count) {
		a.sched.SetInterruptLevel(self, old)
		debug.Panic(debug.ErrProgramming, "palloc_free_multiple: pages at %#x+%d not all allocated", uint32(va), count)
	}
	if a.fill {
		a.mem.Fill(va, count*format.PageSize, format.FreePattern)
	}
	pool.used.SetMultiple(idx, count, false)
	a.sched.SetInterruptLevel(self, old)
	pool.frees.Add(1)
}
