package palloc

import "errors"

var (
	// ErrNoMemory indicates there is no usable memory above the kernel image.
	ErrNoMemory = errors.New("palloc: no memory above kernel image")

	// ErrNoBitmapRoom indicates a pool too small to hold its own bitmap.
	ErrNoBitmapRoom = errors.New("palloc: not enough memory in pool for bitmap")

	// ErrBadLimit indicates a negative user page limit.
	ErrBadLimit = errors.New("palloc: negative user page limit")
)
