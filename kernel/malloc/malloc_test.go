package malloc

import (
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kernkit/internal/format"
	"github.com/joshuapare/kernkit/internal/physmem"
	"github.com/joshuapare/kernkit/kernel/debug"
	"github.com/joshuapare/kernkit/kernel/palloc"
	"github.com/joshuapare/kernkit/kernel/thread"
)

// countingPages records the page requests the block allocator makes.
type countingPages struct {
	*palloc.Allocator

	mu    sync.Mutex
	gets  int
	frees int
}

func (c *countingPages) GetPage(self thread.Handle, flags palloc.Flags) physmem.Addr {
	return c.GetMultiple(self, flags, 1)
}

func (c *countingPages) GetMultiple(self thread.Handle, flags palloc.Flags, count int) physmem.Addr {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.Allocator.GetMultiple(self, flags, count)
}

func (c *countingPages) FreePage(self thread.Handle, va physmem.Addr) {
	c.FreeMultiple(self, va, 1)
}

func (c *countingPages) FreeMultiple(self thread.Handle, va physmem.Addr, count int) {
	c.mu.Lock()
	c.frees++
	c.mu.Unlock()
	c.Allocator.FreeMultiple(self, va, count)
}

type fixture struct {
	mem     *physmem.Memory
	threads *thread.Registry
	main    thread.Handle
	pages   *countingPages
	m       *Allocator
}

// newFixture boots both allocators with kernelPages usable kernel pages.
func newFixture(t *testing.T, kernelPages int) *fixture {
	t.Helper()
	low := format.LowMemEnd / format.PageSize
	// One bitmap page per pool, user pool left empty.
	mem, err := physmem.New(low + kernelPages + 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	r := thread.NewRegistry(nil)
	main := r.Register("main")
	pal, err := palloc.New(mem, r, 0, nil)
	require.NoError(t, err)
	require.Equal(t, kernelPages, pal.Kernel().Pages())

	pages := &countingPages{Allocator: pal}
	return &fixture{mem: mem, threads: r, main: main, pages: pages, m: New(pages, r, nil)}
}

func (f *fixture) kernelUsed() int {
	return f.pages.Stats(f.main, f.pages.Kernel()).Used
}

func (f *fixture) class(size int) ClassStats {
	for _, c := range f.m.Stats(f.main).Classes {
		if c.BlockSize == size {
			return c
		}
	}
	panic("no such class")
}

func TestClasses(t *testing.T) {
	f := newFixture(t, 8)
	assert.Equal(t, []int{16, 32, 64, 128, 256, 512, 1024}, f.m.Classes())
	assert.Equal(t, 127, f.class(32).BlocksPerArena)
	assert.Equal(t, 255, f.class(16).BlocksPerArena)
	assert.Equal(t, 3, f.class(1024).BlocksPerArena)
}

func TestMalloc_PageRequests(t *testing.T) {
	for _, n := range []int{1, 127, 128, 300} {
		f := newFixture(t, 16)
		seen := map[physmem.Addr]bool{}
		for range n {
			b := f.m.Malloc(f.main, 20)
			require.NotEqual(t, physmem.Null, b)
			require.False(t, seen[b])
			seen[b] = true
			require.Equal(t, 32, f.m.BlockSize(b))
		}
		assert.Equal(t, format.DivRoundUp(n, 127), f.pages.gets, "n=%d", n)
		assert.Equal(t, n, f.class(32).InUse)
	}
}

func TestMalloc_BlocksDoNotOverlap(t *testing.T) {
	f := newFixture(t, 16)
	type span struct{ lo, hi physmem.Addr }
	var spans []span
	for i := range 200 {
		size := 1 + i%300
		b := f.m.Malloc(f.main, size)
		require.NotEqual(t, physmem.Null, b)
		spans = append(spans, span{b, b + physmem.Addr(size)})
	}
	for i := range spans {
		for j := i + 1; j < len(spans); j++ {
			overlap := spans[i].lo < spans[j].hi && spans[j].lo < spans[i].hi
			require.False(t, overlap, "%#x and %#x overlap", spans[i].lo, spans[j].lo)
		}
	}
}

func TestMalloc_Zero(t *testing.T) {
	f := newFixture(t, 4)
	assert.Equal(t, physmem.Null, f.m.Malloc(f.main, 0))
	assert.Zero(t, f.pages.gets)
}

func TestMalloc_OutOfMemory(t *testing.T) {
	f := newFixture(t, 4)
	for range 4 * 3 {
		require.NotEqual(t, physmem.Null, f.m.Malloc(f.main, 1000))
	}
	assert.Equal(t, physmem.Null, f.m.Malloc(f.main, 1000))
	assert.Equal(t, physmem.Null, f.m.Malloc(f.main, 10*format.PageSize))
	assert.Equal(t, physmem.Null, f.m.Malloc(f.main, math.MaxInt))
	assert.Equal(t, uint64(3), f.m.Stats(f.main).Failures)
}

func TestMalloc_Large(t *testing.T) {
	f := newFixture(t, 8)

	one := f.m.Malloc(f.main, 2000)
	require.NotEqual(t, physmem.Null, one)
	assert.Equal(t, format.PageSize-format.ArenaHeaderSize, f.m.BlockSize(one))
	assert.Equal(t, uint32(format.ArenaHeaderSize), format.PageOffset(uint32(one)))

	two := f.m.Malloc(f.main, 5000)
	require.NotEqual(t, physmem.Null, two)
	assert.Equal(t, 2*format.PageSize-format.ArenaHeaderSize, f.m.BlockSize(two))

	st := f.m.Stats(f.main)
	assert.Equal(t, int64(2), st.LargeBlocks)
	assert.Equal(t, int64(3), st.LargePages)
	assert.Equal(t, 3, f.kernelUsed())

	f.mem.Fill(two, 5000, 0x11)
	f.m.Free(f.main, two)
	f.m.Free(f.main, one)
	assert.Zero(t, f.kernelUsed())
	assert.Zero(t, f.m.Stats(f.main).LargeBlocks)

	kp := debug.Recover(func() { f.m.Free(f.main, one) })
	require.NotNil(t, kp, "double free of a large block")
	assert.Contains(t, kp.Msg, "bad arena magic")
}

func TestCalloc(t *testing.T) {
	f := newFixture(t, 4)
	assert.Equal(t, physmem.Null, f.m.Calloc(f.main, 0, 8))
	assert.Equal(t, physmem.Null, f.m.Calloc(f.main, 8, 0))
	assert.Equal(t, physmem.Null, f.m.Calloc(f.main, math.MaxInt/2, 3), "overflow")
	assert.Equal(t, physmem.Null, f.m.Calloc(f.main, -1, 8))

	keep := f.m.Malloc(f.main, 48)
	b := f.m.Malloc(f.main, 48)
	f.mem.Fill(b, 48, 0x77)
	f.m.Free(f.main, b)

	c := f.m.Calloc(f.main, 6, 8)
	require.Equal(t, b, c, "reuses the freed block")
	for _, x := range f.mem.Bytes(c, 48) {
		require.Zero(t, x)
	}
	f.m.Free(f.main, c)
	f.m.Free(f.main, keep)
}

func TestRealloc(t *testing.T) {
	f := newFixture(t, 8)

	t.Run("null is malloc", func(t *testing.T) {
		b := f.m.Realloc(f.main, physmem.Null, 10)
		require.NotEqual(t, physmem.Null, b)
		assert.Equal(t, 16, f.m.BlockSize(b))
		f.m.Free(f.main, b)
	})

	t.Run("zero frees", func(t *testing.T) {
		b := f.m.Malloc(f.main, 10)
		assert.Equal(t, physmem.Null, f.m.Realloc(f.main, b, 0))
		assert.Zero(t, f.class(16).InUse)
	})

	t.Run("fits in place", func(t *testing.T) {
		b := f.m.Malloc(f.main, 20)
		assert.Equal(t, b, f.m.Realloc(f.main, b, 32))
		assert.Equal(t, b, f.m.Realloc(f.main, b, 1))
		f.m.Free(f.main, b)
	})

	t.Run("grow copies", func(t *testing.T) {
		b := f.m.Malloc(f.main, 16)
		copy(f.mem.Bytes(b, 16), "0123456789abcdef")
		g := f.m.Realloc(f.main, b, 100)
		require.NotEqual(t, physmem.Null, g)
		assert.NotEqual(t, b, g)
		assert.Equal(t, "0123456789abcdef", string(f.mem.Bytes(g, 16)))
		assert.Equal(t, 128, f.m.BlockSize(g))
		assert.Zero(t, f.class(16).InUse, "old block freed")
		f.m.Free(f.main, g)
	})

	t.Run("failure keeps old", func(t *testing.T) {
		b := f.m.Malloc(f.main, 16)
		copy(f.mem.Bytes(b, 4), "keep")
		assert.Equal(t, physmem.Null, f.m.Realloc(f.main, b, 100*format.PageSize))
		assert.Equal(t, "keep", string(f.mem.Bytes(b, 4)))
		assert.Equal(t, 1, f.class(16).InUse)
		f.m.Free(f.main, b)
	})

	assert.Zero(t, f.kernelUsed())
}

func TestFree_FillsBlock(t *testing.T) {
	f := newFixture(t, 4)
	keep := f.m.Malloc(f.main, 64)
	b := f.m.Malloc(f.main, 64)
	f.mem.Fill(b, 64, 0)
	f.m.Free(f.main, b)

	// The first eight bytes now hold the free-list links.
	for _, x := range f.mem.Bytes(b+format.FreeLinkSize, 64-format.FreeLinkSize) {
		require.Equal(t, format.FreePattern, x)
	}
	f.m.Free(f.main, keep)
}

func TestFree_ReturnsArena(t *testing.T) {
	f := newFixture(t, 4)

	var blocks []physmem.Addr
	for range 127 + 1 {
		blocks = append(blocks, f.m.Malloc(f.main, 32))
	}
	assert.Equal(t, 2, f.kernelUsed())
	assert.Equal(t, 2, f.class(32).Arenas)

	for _, b := range blocks[:127] {
		f.m.Free(f.main, b)
	}
	c := f.class(32)
	assert.Equal(t, 1, c.Arenas)
	assert.Equal(t, uint64(1), c.PagesReturned)
	assert.Equal(t, 126, c.FreeBlocks, "only the surviving arena's blocks stay listed")
	assert.Equal(t, 1, f.kernelUsed())

	f.m.Free(f.main, blocks[127])
	assert.Zero(t, f.kernelUsed())
	assert.Zero(t, f.class(32).FreeBlocks)
	assert.Equal(t, f.pages.gets, f.pages.frees)
}

func TestFree_Null(t *testing.T) {
	f := newFixture(t, 4)
	assert.Nil(t, debug.Recover(func() { f.m.Free(f.main, physmem.Null) }))
}

func TestFree_BadPointers(t *testing.T) {
	f := newFixture(t, 4)
	b := f.m.Malloc(f.main, 32)
	large := f.m.Malloc(f.main, 2000)
	raw := f.pages.GetPage(f.main, palloc.PalZero)

	cases := map[string]struct {
		ptr  physmem.Addr
		want string
	}{
		"inside block":    {b + 4, "block boundary"},
		"arena header":    {b - format.ArenaHeaderSize, "block boundary"},
		"inside large":    {large + 8, "large block"},
		"not an arena":    {raw + 64, "bad arena magic"},
		"below PHYS_BASE": {0x1000, "not in physical memory"},
		"past end of RAM": {f.mem.End() + 64, "not in physical memory"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			kp := debug.Recover(func() { f.m.Free(f.main, tc.ptr) })
			require.NotNil(t, kp)
			assert.ErrorIs(t, kp, debug.ErrProgramming)
			assert.Contains(t, kp.Msg, tc.want)
		})
	}

	// Nothing was corrupted by the rejected frees.
	f.m.Free(f.main, b)
	f.m.Free(f.main, large)
	f.pages.FreePage(f.main, raw)
	assert.Zero(t, f.kernelUsed())
}

func TestInterruptContext(t *testing.T) {
	f := newFixture(t, 4)
	b := f.m.Malloc(f.main, 8)

	ops := map[string]func(){
		"malloc":  func() { f.m.Malloc(f.main, 8) },
		"calloc":  func() { f.m.Calloc(f.main, 1, 8) },
		"realloc": func() { f.m.Realloc(f.main, b, 64) },
		"free":    func() { f.m.Free(f.main, b) },
	}
	for name, op := range ops {
		var kp *debug.KernelPanic
		f.threads.Interrupt(f.main, func() { kp = debug.Recover(op) })
		require.NotNil(t, kp, name)
		assert.Contains(t, kp.Msg, "interrupt context", name)
	}
	assert.Equal(t, 1, f.class(16).InUse)
}

func TestConcurrentThreads(t *testing.T) {
	f := newFixture(t, 64)

	const workers, rounds = 6, 200
	for w := range workers {
		f.threads.Spawn("worker", func(self thread.Handle) {
			rng := rand.New(rand.NewPCG(uint64(w), 11))
			type live struct {
				p    physmem.Addr
				size int
			}
			var held []live
			stamp := byte(w + 1)
			check := func(l live) bool {
				for _, x := range f.mem.Bytes(l.p, l.size) {
					if !assert.Equal(t, stamp, x) {
						return false
					}
				}
				return true
			}
			for range rounds {
				if len(held) > 0 && rng.IntN(2) == 0 {
					i := rng.IntN(len(held))
					if !check(held[i]) {
						return
					}
					f.m.Free(self, held[i].p)
					held = append(held[:i], held[i+1:]...)
					continue
				}
				size := 1 + rng.IntN(1500)
				p := f.m.Malloc(self, size)
				if p == physmem.Null {
					continue
				}
				f.mem.Fill(p, size, stamp)
				held = append(held, live{p, size})
			}
			for _, l := range held {
				check(l)
				f.m.Free(self, l.p)
			}
		})
	}
	f.threads.Wait()

	assert.Zero(t, f.kernelUsed())
	for _, c := range f.m.Stats(f.main).Classes {
		assert.Zero(t, c.InUse, "class %d", c.BlockSize)
		assert.Zero(t, c.Arenas, "class %d", c.BlockSize)
	}
}
