// Package bitmap is an array of bits, one per allocation unit, stored in a
// caller-supplied byte buffer so that it can live inside the memory it
// describes. The page allocator keeps each pool's bitmap in the first pages
// of the pool itself.
//
// A Bitmap is not safe for concurrent use; callers provide the exclusion.
package bitmap

import (
	"fmt"
	"math/bits"

	"github.com/joshuapare/kernkit/internal/format"
)

// Bitmap tracks size bits in buf. Bit i is stored in byte i/8, bit i%8.
type Bitmap struct {
	size int
	buf  []byte
}

// BufSize returns the number of bytes needed to hold a bitmap of size bits.
func BufSize(size int) int {
	return format.DivRoundUp(size, 8)
}

// New creates a bitmap of size bits in freshly allocated memory, all false.
func New(size int) *Bitmap {
	return &Bitmap{size: size, buf: make([]byte, BufSize(size))}
}

// CreateInBuf creates a bitmap of size bits inside buf, which must hold at
// least BufSize(size) bytes. All bits are cleared.
func CreateInBuf(size int, buf []byte) (*Bitmap, error) {
	if size < 0 {
		return nil, fmt.Errorf("bitmap: negative size %d", size)
	}
	need := BufSize(size)
	if len(buf) < need {
		return nil, fmt.Errorf("bitmap: buffer of %d bytes cannot hold %d bits", len(buf), size)
	}
	b := &Bitmap{size: size, buf: buf[:need:need]}
	clear(b.buf)
	return b, nil
}

// Size returns the number of bits.
func (b *Bitmap) Size() int { return b.size }

func (b *Bitmap) check(start, cnt int) {
	if start < 0 || cnt < 0 || start > b.size || cnt > b.size-start {
		panic(fmt.Sprintf("bitmap: range [%d,+%d) outside %d bits", start, cnt, b.size))
	}
}

// Test reports the value of bit idx.
func (b *Bitmap) Test(idx int) bool {
	b.check(idx, 1)
	return b.buf[idx>>3]&(1<<(idx&7)) != 0
}

// Set sets bit idx to value.
func (b *Bitmap) Set(idx int, value bool) {
	b.check(idx, 1)
	if value {
		b.buf[idx>>3] |= 1 << (idx & 7)
	} else {
		b.buf[idx>>3] &^= 1 << (idx & 7)
	}
}

// Mark sets bit idx to true.
func (b *Bitmap) Mark(idx int) { b.Set(idx, true) }

// Reset sets bit idx to false.
func (b *Bitmap) Reset(idx int) { b.Set(idx, false) }

// Flip toggles bit idx.
func (b *Bitmap) Flip(idx int) {
	b.check(idx, 1)
	b.buf[idx>>3] ^= 1 << (idx & 7)
}

// SetMultiple sets cnt bits starting at start to value.
func (b *Bitmap) SetMultiple(start, cnt int, value bool) {
	b.check(start, cnt)
	for i := start; i < start+cnt; i++ {
		b.Set(i, value)
	}
}

// SetAll sets every bit to value.
func (b *Bitmap) SetAll(value bool) {
	b.SetMultiple(0, b.size, value)
}

// Count returns the number of bits in [start, start+cnt) equal to value.
func (b *Bitmap) Count(start, cnt int, value bool) int {
	b.check(start, cnt)
	n := 0
	i := start
	for ; i < start+cnt && i&7 != 0; i++ {
		if b.Test(i) {
			n++
		}
	}
	for ; i+8 <= start+cnt; i += 8 {
		n += bits.OnesCount8(b.buf[i>>3])
	}
	for ; i < start+cnt; i++ {
		if b.Test(i) {
			n++
		}
	}
	if value {
		return n
	}
	return cnt - n
}

// Contains reports whether any bit in [start, start+cnt) equals value.
func (b *Bitmap) Contains(start, cnt int, value bool) bool {
	b.check(start, cnt)
	for i := start; i < start+cnt; i++ {
		if b.Test(i) == value {
			return true
		}
	}
	return false
}

// Any reports whether any bit in [start, start+cnt) is set.
func (b *Bitmap) Any(start, cnt int) bool { return b.Contains(start, cnt, true) }

// None reports whether no bit in [start, start+cnt) is set.
func (b *Bitmap) None(start, cnt int) bool { return !b.Contains(start, cnt, true) }

// All reports whether every bit in [start, start+cnt) is set.
func (b *Bitmap) All(start, cnt int) bool { return !b.Contains(start, cnt, false) }

// Scan finds the first run of cnt consecutive bits equal to value at or
// after start. It returns the index of the run's first bit and true, or
// (0, false) when there is no such run. A cnt of zero matches at start.
func (b *Bitmap) Scan(start, cnt int, value bool) (int, bool) {
	b.check(start, 0)
	if cnt == 0 {
		return start, true
	}
	skip := byte(0xff) // whole bytes that cannot contain a wanted bit
	if value {
		skip = 0
	}

	run := 0
	for i := start; i < b.size; {
		if run == 0 && i&7 == 0 && b.buf[i>>3] == skip {
			i += 8
			continue
		}
		if b.Test(i) == value {
			run++
			if run == cnt {
				return i - cnt + 1, true
			}
		} else {
			run = 0
		}
		i++
	}
	return 0, false
}

// ScanAndFlip finds the first run of cnt bits equal to value at or after
// start, flips them all to !value and returns the run's first index.
func (b *Bitmap) ScanAndFlip(start, cnt int, value bool) (int, bool) {
	idx, ok := b.Scan(start, cnt, value)
	if ok {
		b.SetMultiple(idx, cnt, !value)
	}
	return idx, ok
}

// LongestRun returns the length of the longest run of bits equal to value.
func (b *Bitmap) LongestRun(value bool) int {
	best, run := 0, 0
	for i := 0; i < b.size; i++ {
		if b.Test(i) == value {
			run++
			best = max(best, run)
		} else {
			run = 0
		}
	}
	return best
}

// String renders the bitmap as a row of '1' and '0' characters.
func (b *Bitmap) String() string {
	out := make([]byte, b.size)
	for i := range out {
		out[i] = '0'
		if b.Test(i) {
			out[i] = '1'
		}
	}
	return string(out)
}
