package buf

import (
	"fmt"
	"math"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int.
func AddOverflowSafe(a, b int) (int, bool) {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return 0, false
	case b < 0 && a < math.MinInt-b:
		return 0, false
	default:
		return a + b, true
	}
}

// MulSize multiplies two non-negative sizes, returning ok = false when either
// is negative or the product would overflow int. This is the count * size
// check behind calloc.
func MulSize(count, size int) (int, bool) {
	if count < 0 || size < 0 {
		return 0, false
	}
	if count == 0 || size == 0 {
		return 0, true
	}
	if count > math.MaxInt/size {
		return 0, false
	}
	return count * size, true
}

// CheckSpan validates that count elements of elementSize bytes fit in a region
// of regionLen bytes starting at offset. Returns the end offset if valid, or
// an error describing the specific failure (overflow or out of bounds).
//
//	end, err := buf.CheckSpan(mem.Len(), off, pages, format.PageSize)
//	if err != nil {
//	    return fmt.Errorf("physmem: %w", err)
//	}
func CheckSpan(regionLen, offset, count, elementSize int) (int, error) {
	if offset < 0 {
		return 0, fmt.Errorf("negative offset: %d", offset)
	}
	if count < 0 {
		return 0, fmt.Errorf("negative count: %d", count)
	}
	if elementSize < 0 {
		return 0, fmt.Errorf("negative element size: %d", elementSize)
	}

	total, ok := MulSize(count, elementSize)
	if !ok {
		return 0, fmt.Errorf("overflow: count=%d * elemSize=%d", count, elementSize)
	}

	end, ok := AddOverflowSafe(offset, total)
	if !ok {
		return 0, fmt.Errorf("overflow: offset=%d + size=%d", offset, total)
	}

	if end > regionLen {
		return 0, fmt.Errorf("bounds: end=%d > len=%d", end, regionLen)
	}
	return end, nil
}
