package bitmap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufSize(t *testing.T) {
	require.Equal(t, 0, BufSize(0))
	require.Equal(t, 1, BufSize(1))
	require.Equal(t, 1, BufSize(8))
	require.Equal(t, 2, BufSize(9))
}

func TestCreateInBuf_ClearsAndBounds(t *testing.T) {
	buf := []byte{0xff, 0xff, 0xff}
	b, err := CreateInBuf(12, buf)
	require.NoError(t, err)
	require.Equal(t, 12, b.Size())
	require.Equal(t, []byte{0, 0, 0xff}, buf, "only the bytes the bitmap needs are cleared")

	_, err = CreateInBuf(25, buf)
	require.Error(t, err)
}

func TestSetTestFlip(t *testing.T) {
	b := New(10)
	b.Mark(3)
	b.Mark(9)
	require.True(t, b.Test(3))
	require.True(t, b.Test(9))
	require.False(t, b.Test(4))

	b.Flip(3)
	require.False(t, b.Test(3))
	b.Reset(9)
	require.Equal(t, "0000000000", b.String())

	require.Panics(t, func() { b.Test(10) })
}

func TestCountAndContains(t *testing.T) {
	b := New(40)
	b.SetMultiple(5, 20, true)

	require.Equal(t, 20, b.Count(0, 40, true))
	require.Equal(t, 20, b.Count(0, 40, false))
	require.Equal(t, 3, b.Count(3, 5, true))
	require.True(t, b.All(5, 20))
	require.False(t, b.All(4, 20))
	require.True(t, b.None(25, 15))
	require.True(t, b.Any(0, 6))
}

func TestScan_FirstFit(t *testing.T) {
	b := New(16)
	// 1100 0110 0000 0000
	b.SetMultiple(0, 2, true)
	b.SetMultiple(5, 2, true)

	idx, ok := b.Scan(0, 3, false)
	require.True(t, ok)
	require.Equal(t, 2, idx, "first run of three clear bits starts at 2")

	idx, ok = b.Scan(0, 4, false)
	require.True(t, ok)
	require.Equal(t, 7, idx)

	_, ok = b.Scan(0, 10, false)
	require.False(t, ok)

	idx, ok = b.Scan(3, 2, true)
	require.True(t, ok)
	require.Equal(t, 5, idx)

	idx, ok = b.Scan(4, 0, false)
	require.True(t, ok)
	require.Equal(t, 4, idx)
}

func TestScan_SkipsFullBytes(t *testing.T) {
	b := New(64)
	b.SetMultiple(0, 60, true)

	idx, ok := b.Scan(0, 4, false)
	require.True(t, ok)
	require.Equal(t, 60, idx)

	_, ok = b.Scan(0, 5, false)
	require.False(t, ok)
}

func TestScanAndFlip(t *testing.T) {
	b := New(8)
	idx, ok := b.ScanAndFlip(0, 3, false)
	require.True(t, ok)
	require.Equal(t, 0, idx)

	idx, ok = b.ScanAndFlip(0, 3, false)
	require.True(t, ok)
	require.Equal(t, 3, idx)

	_, ok = b.ScanAndFlip(0, 3, false)
	require.False(t, ok)
	require.Equal(t, "11111100", b.String())
}

func TestLongestRun(t *testing.T) {
	b := New(12)
	b.Mark(2)
	b.Mark(8)
	require.Equal(t, 5, b.LongestRun(false))
	require.Equal(t, 1, b.LongestRun(true))
}

// The count of set bits always matches a reference model after random
// first-fit allocations and frees.
func TestScanAndFlip_MatchesModel(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := New(100)
	model := make([]bool, 100)
	type run struct{ idx, cnt int }
	var live []run

	for range 2000 {
		if len(live) > 0 && rng.Intn(2) == 0 {
			k := rng.Intn(len(live))
			r := live[k]
			require.True(t, b.All(r.idx, r.cnt))
			b.SetMultiple(r.idx, r.cnt, false)
			for i := r.idx; i < r.idx+r.cnt; i++ {
				model[i] = false
			}
			live = append(live[:k], live[k+1:]...)
			continue
		}
		cnt := 1 + rng.Intn(4)
		idx, ok := b.ScanAndFlip(0, cnt, false)
		if !ok {
			continue
		}
		for i := idx; i < idx+cnt; i++ {
			require.False(t, model[i], "run overlaps a live allocation")
			model[i] = true
		}
		live = append(live, run{idx, cnt})

		set := 0
		for _, v := range model {
			if v {
				set++
			}
		}
		require.Equal(t, set, b.Count(0, b.Size(), true))
	}
}
