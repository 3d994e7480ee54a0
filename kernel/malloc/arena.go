package malloc

import (
	"github.com/joshuapare/kernkit/internal/format"
	"github.com/joshuapare/kernkit/internal/physmem"
	"github.com/joshuapare/kernkit/kernel/debug"
)

// writeHeader stamps an arena header at a. descIndex is the size class index
// + 1, or 0 for a large block.
func (m *Allocator) writeHeader(a physmem.Addr, descIndex, free int) {
	m.mem.Zero(a, format.ArenaHeaderSize)
	m.mem.PutU32(a+format.ArenaMagicOffset, format.ArenaMagic)
	m.mem.PutU32(a+format.ArenaDescOffset, uint32(descIndex))
	m.mem.PutU32(a+format.ArenaFreeOffset, uint32(free))
}

func (m *Allocator) freeCount(a physmem.Addr) int {
	return int(m.mem.U32(a + format.ArenaFreeOffset))
}

func (m *Allocator) setFreeCount(a physmem.Addr, n int) {
	m.mem.PutU32(a+format.ArenaFreeOffset, uint32(n))
}

// lookup finds the arena holding block b and its descriptor, nil for a large
// block. Anything that is not a live malloc block is a kernel panic.
func (m *Allocator) lookup(op string, b physmem.Addr) (physmem.Addr, *descriptor) {
	a := physmem.Addr(format.PageRoundDown(uint32(b)))
	if !m.mem.Contains(a, format.PageSize) {
		debug.Panic(debug.ErrProgramming, "%s: %#x is not in physical memory", op, uint32(b))
	}
	if magic := m.mem.U32(a + format.ArenaMagicOffset); magic != format.ArenaMagic {
		debug.Panic(debug.ErrProgramming, "%s: %#x: bad arena magic %#08x", op, uint32(b), magic)
	}

	idx := int(m.mem.U32(a + format.ArenaDescOffset))
	if idx == 0 {
		debug.Assert(b == a+format.ArenaHeaderSize, "%s: %#x is not the start of a large block", op, uint32(b))
		return a, nil
	}
	debug.Assert(idx <= len(m.descs), "%s: %#x: bad descriptor %d", op, uint32(b), idx)

	d := m.descs[idx-1]
	ofs := int(b-a) - format.ArenaHeaderSize
	debug.Assert(ofs >= 0 && ofs%d.blockSize == 0 && ofs/d.blockSize < d.blocksPerArena,
		"%s: %#x is not a %d-byte block boundary", op, uint32(b), d.blockSize)
	return a, d
}
