package malloc

import (
	"github.com/joshuapare/kernkit/internal/format"
	"github.com/joshuapare/kernkit/internal/physmem"
	"github.com/joshuapare/kernkit/kernel/synch"
)

// descriptor is one size class. Every field below lock is guarded by it.
type descriptor struct {
	index          int // position in Allocator.descs; the arena header stores index+1
	blockSize      int
	blocksPerArena int

	lock synch.Lock

	head, tail physmem.Addr // free list
	free       int          // blocks on the free list
	arenas     int
	inUse      int

	pagesRequested uint64
	pagesReturned  uint64
}

// newDescriptors builds the size-class table: MinBlockSize doubling up to
// MaxBlockSize.
func newDescriptors(sched synch.Scheduler) []*descriptor {
	var descs []*descriptor
	for size := format.MinBlockSize; size <= format.MaxBlockSize; size *= 2 {
		d := &descriptor{
			index:          len(descs),
			blockSize:      size,
			blocksPerArena: (format.PageSize - format.ArenaHeaderSize) / size,
		}
		d.lock.Init(sched)
		descs = append(descs, d)
	}
	return descs
}

// classFor returns the smallest descriptor whose blocks hold size bytes, or
// nil when size needs a large block.
func classFor(descs []*descriptor, size int) *descriptor {
	for _, d := range descs {
		if d.blockSize >= size {
			return d
		}
	}
	return nil
}

// block returns the address of block idx of the arena at a.
func (d *descriptor) block(a physmem.Addr, idx int) physmem.Addr {
	return a + format.ArenaHeaderSize + physmem.Addr(idx*d.blockSize)
}
