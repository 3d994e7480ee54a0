package palloc

import "strings"

// Flags control how pages are allocated.
type Flags uint

const (
	// PalAssert panics the kernel if the pages cannot be allocated. Only
	// appropriate during kernel initialization; user processes must never be
	// able to panic the kernel.
	PalAssert Flags = 1 << iota

	// PalZero zeroes the pages before returning them. Without it their
	// contents are unpredictable.
	PalZero

	// PalUser takes the pages from the user pool instead of the kernel pool.
	PalUser
)

func (f Flags) String() string {
	if f == 0 {
		return "0"
	}
	var parts []string
	for _, fl := range []struct {
		bit  Flags
		name string
	}{{PalAssert, "ASSERT"}, {PalZero, "ZERO"}, {PalUser, "USER"}} {
		if f&fl.bit != 0 {
			parts = append(parts, fl.name)
		}
	}
	return strings.Join(parts, "|")
}
