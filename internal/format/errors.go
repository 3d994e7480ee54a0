package format

import "errors"

// ErrNotPageAligned indicates an address that should start a page does not.
var ErrNotPageAligned = errors.New("format: address not page aligned")
