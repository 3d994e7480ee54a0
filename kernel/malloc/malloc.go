package malloc

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/joshuapare/kernkit/internal/buf"
	"github.com/joshuapare/kernkit/internal/format"
	"github.com/joshuapare/kernkit/internal/logger"
	"github.com/joshuapare/kernkit/internal/physmem"
	"github.com/joshuapare/kernkit/kernel/debug"
	"github.com/joshuapare/kernkit/kernel/palloc"
	"github.com/joshuapare/kernkit/kernel/synch"
	"github.com/joshuapare/kernkit/kernel/thread"
)

// PageAllocator is the page source the block allocator draws on.
// *palloc.Allocator implements it.
type PageAllocator interface {
	GetPage(self thread.Handle, flags palloc.Flags) physmem.Addr
	GetMultiple(self thread.Handle, flags palloc.Flags, count int) physmem.Addr
	FreePage(self thread.Handle, va physmem.Addr)
	FreeMultiple(self thread.Handle, va physmem.Addr, count int)
	Memory() *physmem.Memory
}

var _ PageAllocator = (*palloc.Allocator)(nil)

// Config tunes the block allocator. The zero value is ready to use.
type Config struct {
	// NoFreeFill skips filling freed blocks with format.FreePattern.
	NoFreeFill bool

	// Logger receives allocator diagnostics. Nil uses the process logger.
	Logger *slog.Logger
}

// Allocator hands out blocks of arbitrary size.
type Allocator struct {
	pages PageAllocator
	sched synch.Scheduler
	mem   *physmem.Memory
	descs []*descriptor
	fill  bool
	log   *slog.Logger

	large    atomic.Int64 // live large blocks
	largePgs atomic.Int64 // pages held by live large blocks
	failures atomic.Uint64
}

// New builds the size-class table over pages. cfg may be nil.
func New(pages PageAllocator, sched synch.Scheduler, cfg *Config) *Allocator {
	if cfg == nil {
		cfg = &Config{}
	}
	m := &Allocator{
		pages: pages,
		sched: sched,
		mem:   pages.Memory(),
		descs: newDescriptors(sched),
		fill:  !cfg.NoFreeFill,
		log:   cfg.Logger,
	}
	if m.log == nil {
		m.log = logger.Component("malloc")
	}
	return m
}

// Classes returns the block size of every size class, smallest first.
func (m *Allocator) Classes() []int {
	sizes := make([]int, len(m.descs))
	for i, d := range m.descs {
		sizes[i] = d.blockSize
	}
	return sizes
}

// Malloc obtains and returns a new block of at least size bytes. Returns
// physmem.Null if size is zero or memory is not available.
func (m *Allocator) Malloc(self thread.Handle, size int) physmem.Addr {
	m.checkContext(self, "malloc")
	if size <= 0 {
		return physmem.Null
	}

	d := classFor(m.descs, size)
	if d == nil {
		return m.mallocLarge(self, size)
	}

	d.lock.Acquire(self)
	defer d.lock.Release(self)

	if d.head == physmem.Null {
		a := m.pages.GetPage(self, 0)
		if a == physmem.Null {
			m.failures.Add(1)
			m.log.Debug("no page for new arena", "block_size", d.blockSize)
			return physmem.Null
		}
		m.writeHeader(a, d.index+1, d.blocksPerArena)
		for i := range d.blocksPerArena {
			m.pushBack(d, d.block(a, i))
		}
		d.arenas++
		d.pagesRequested++
		m.log.Debug("new arena", "block_size", d.blockSize, "arena", fmt.Sprintf("%#x", uint32(a)))
	}

	b := m.popFront(d)
	a := physmem.Addr(format.PageRoundDown(uint32(b)))
	m.setFreeCount(a, m.freeCount(a)-1)
	d.inUse++
	return b
}

func (m *Allocator) mallocLarge(self thread.Handle, size int) physmem.Addr {
	// Anything past the mappable RAM can never fit; this also keeps the
	// page arithmetic below from overflowing.
	if size > format.MaxPhysMem {
		m.failures.Add(1)
		return physmem.Null
	}
	n := format.DivRoundUp(size+format.ArenaHeaderSize, format.PageSize)
	a := m.pages.GetMultiple(self, 0, n)
	if a == physmem.Null {
		m.failures.Add(1)
		m.log.Debug("no pages for large block", "size", size, "pages", n)
		return physmem.Null
	}
	m.writeHeader(a, 0, n)
	m.large.Add(1)
	m.largePgs.Add(int64(n))
	m.log.Debug("large block", "size", size, "pages", n, "arena", fmt.Sprintf("%#x", uint32(a)))
	return a + format.ArenaHeaderSize
}

// Calloc allocates and returns a zeroed block of count*size bytes. Returns
// physmem.Null if either is zero, the product overflows, or memory is not
// available.
func (m *Allocator) Calloc(self thread.Handle, count, size int) physmem.Addr {
	total, ok := buf.MulSize(count, size)
	if !ok || total == 0 {
		m.checkContext(self, "calloc")
		return physmem.Null
	}
	p := m.Malloc(self, total)
	if p != physmem.Null {
		m.mem.Zero(p, total)
	}
	return p
}

// BlockSize returns the usable size of the live block at b.
func (m *Allocator) BlockSize(b physmem.Addr) int {
	a, d := m.lookup("block_size", b)
	if d == nil {
		return m.freeCount(a)*format.PageSize - format.ArenaHeaderSize
	}
	return d.blockSize
}

// Realloc attempts to resize old to newSize bytes, possibly moving it. On
// success returns the new block, in which case old must no longer be used.
// On failure returns physmem.Null and old remains valid. A null old is
// Malloc; a zero newSize frees old and returns physmem.Null.
func (m *Allocator) Realloc(self thread.Handle, old physmem.Addr, newSize int) physmem.Addr {
	m.checkContext(self, "realloc")
	if newSize <= 0 {
		m.Free(self, old)
		return physmem.Null
	}
	if old == physmem.Null {
		return m.Malloc(self, newSize)
	}

	oldSize := m.BlockSize(old)
	if oldSize >= newSize {
		return old
	}
	p := m.Malloc(self, newSize)
	if p == physmem.Null {
		return physmem.Null
	}
	m.mem.Copy(p, old, oldSize)
	m.Free(self, old)
	return p
}

// Free releases block b, which must have come from Malloc, Calloc or
// Realloc and not yet been freed. A null b is ignored.
func (m *Allocator) Free(self thread.Handle, b physmem.Addr) {
	m.checkContext(self, "free")
	if b == physmem.Null {
		return
	}

	a, d := m.lookup("free", b)
	if d == nil {
		n := m.freeCount(a)
		m.mem.PutU32(a+format.ArenaMagicOffset, 0)
		m.large.Add(-1)
		m.largePgs.Add(-int64(n))
		m.pages.FreeMultiple(self, a, n)
		return
	}

	d.lock.Acquire(self)
	defer d.lock.Release(self)

	if m.fill {
		m.mem.Fill(b, d.blockSize, format.FreePattern)
	}
	m.pushFront(d, b)
	free := m.freeCount(a) + 1
	debug.Assert(free <= d.blocksPerArena, "free: %#x: arena has %d free of %d blocks", uint32(b), free, d.blocksPerArena)
	m.setFreeCount(a, free)
	d.inUse--

	if free == d.blocksPerArena {
		for i := range d.blocksPerArena {
			m.remove(d, d.block(a, i))
		}
		m.mem.PutU32(a+format.ArenaMagicOffset, 0)
		m.pages.FreePage(self, a)
		d.arenas--
		d.pagesReturned++
		m.log.Debug("arena returned", "block_size", d.blockSize, "arena", fmt.Sprintf("%#x", uint32(a)))
	}
}

func (m *Allocator) checkContext(self thread.Handle, op string) {
	debug.Assert(!m.sched.InInterrupt(self), "%s: called from interrupt context", op)
}
