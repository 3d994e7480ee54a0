package palloc

import (
	"fmt"
	"sync/atomic"

	"github.com/joshuapare/kernkit/internal/format"
	"github.com/joshuapare/kernkit/internal/physmem"
	"github.com/joshuapare/kernkit/kernel/bitmap"
	"github.com/joshuapare/kernkit/kernel/synch"
)

// Pool is a contiguous run of pages and the bitmap recording which are in use.
//
// The lock serializes allocators against each other. The bitmap itself is
// only changed with interrupts off, which is what lets FreeMultiple run in an
// interrupt handler without taking the lock.
type Pool struct {
	name string
	lock synch.Lock
	used *bitmap.Bitmap

	start       physmem.Addr // first page of the pool, where the bitmap lives
	bitmapPages int
	base        physmem.Addr // first allocatable page
	pages       int          // allocatable pages

	gets     atomic.Uint64 // successful requests
	frees    atomic.Uint64
	failures atomic.Uint64
}

// init sets up pool p to manage pageCnt pages starting at start. The bitmap
// is carved out of the front of the pool.
func (p *Pool) init(mem *physmem.Memory, sched synch.Scheduler, name string, start physmem.Addr, pageCnt int) error {
	bmPages := format.DivRoundUp(bitmap.BufSize(pageCnt), format.PageSize)
	if bmPages > pageCnt {
		return fmt.Errorf("%w: %s has %d pages, bitmap needs %d", ErrNoBitmapRoom, name, pageCnt, bmPages)
	}
	pageCnt -= bmPages

	used, err := bitmap.CreateInBuf(pageCnt, mem.Bytes(start, bmPages*format.PageSize))
	if err != nil {
		return fmt.Errorf("palloc: %s bitmap: %w", name, err)
	}

	p.name = name
	p.lock.Init(sched)
	p.used = used
	p.start = start
	p.bitmapPages = bmPages
	p.base = start + physmem.Addr(bmPages*format.PageSize)
	p.pages = pageCnt
	return nil
}

// Name returns "kernel pool" or "user pool".
func (p *Pool) Name() string { return p.name }

// Base returns the address of the first allocatable page.
func (p *Pool) Base() physmem.Addr { return p.base }

// Pages returns the number of allocatable pages.
func (p *Pool) Pages() int { return p.pages }

// BitmapPages returns the number of pages at the front of the pool used by
// the bitmap.
func (p *Pool) BitmapPages() int { return p.bitmapPages }

// End returns the address one past the pool's last page.
func (p *Pool) End() physmem.Addr {
	return p.base + physmem.Addr(p.pages*format.PageSize)
}

// Contains reports whether va lies in one of the pool's allocatable pages.
func (p *Pool) Contains(va physmem.Addr) bool {
	return va >= p.base && va < p.End()
}

func (p *Pool) index(va physmem.Addr) int {
	return int(format.PageNumber(uint32(va)) - format.PageNumber(uint32(p.base)))
}

func (p *Pool) addr(idx int) physmem.Addr {
	return p.base + physmem.Addr(idx*format.PageSize)
}
