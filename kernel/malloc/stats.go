package malloc

import "github.com/joshuapare/kernkit/kernel/thread"

// ClassStats describes one size class.
type ClassStats struct {
	BlockSize      int    `json:"block_size"`
	BlocksPerArena int    `json:"blocks_per_arena"`
	Arenas         int    `json:"arenas"`
	InUse          int    `json:"in_use"`
	FreeBlocks     int    `json:"free_blocks"`
	PagesRequested uint64 `json:"pages_requested"`
	PagesReturned  uint64 `json:"pages_returned"`
}

// Stats is a snapshot of the block allocator.
type Stats struct {
	Classes     []ClassStats `json:"classes"`
	LargeBlocks int64        `json:"large_blocks"`
	LargePages  int64        `json:"large_pages"`
	Failures    uint64       `json:"failures"`
}

// Stats takes each descriptor lock in turn, so classes are individually
// consistent but not with each other.
func (m *Allocator) Stats(self thread.Handle) Stats {
	st := Stats{
		Classes:     make([]ClassStats, 0, len(m.descs)),
		LargeBlocks: m.large.Load(),
		LargePages:  m.largePgs.Load(),
		Failures:    m.failures.Load(),
	}
	for _, d := range m.descs {
		d.lock.Acquire(self)
		st.Classes = append(st.Classes, ClassStats{
			BlockSize:      d.blockSize,
			BlocksPerArena: d.blocksPerArena,
			Arenas:         d.arenas,
			InUse:          d.inUse,
			FreeBlocks:     d.free,
			PagesRequested: d.pagesRequested,
			PagesReturned:  d.pagesReturned,
		})
		d.lock.Release(self)
	}
	return st
}
