package format

// Page arithmetic on 32-bit kernel addresses.

// PageOffset returns the offset of va within its page.
//
// Example:
//
//	PageOffset(0xc0101234) = 0x234
func PageOffset(va uint32) uint32 {
	return va & PageMask
}

// PageNumber returns the virtual page number that va falls in.
func PageNumber(va uint32) uint32 {
	return va >> PageShift
}

// PageRoundDown rounds va down to the start of its page.
//
// Example:
//
//	PageRoundDown(0xc0101234) = 0xc0101000
//	PageRoundDown(0xc0101000) = 0xc0101000
func PageRoundDown(va uint32) uint32 {
	return va &^ PageMask
}

// DivRoundUp returns n/d rounded up. d must be positive.
func DivRoundUp(n, d int) int {
	return (n + d - 1) / d
}
