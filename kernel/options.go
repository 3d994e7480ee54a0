package kernel

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/joshuapare/kernkit/internal/format"
	"github.com/joshuapare/kernkit/kernel/palloc"
)

// Defaults for Options.
const (
	DefaultRAMPages    = 1024 // 4 MiB
	DefaultKernelPages = 16   // 64 KiB kernel image above 1 MiB
)

var (
	// ErrBadOptions indicates options that cannot describe a bootable machine.
	ErrBadOptions = errors.New("kernel: invalid options")
)

// Options controls how the simulated kernel boots.
type Options struct {
	// RAMPages is the amount of physical memory in pages.
	RAMPages int `yaml:"ram_pages"`

	// KernelPages is the size of the kernel image loaded at 1 MiB. Free
	// memory starts right after it.
	KernelPages int `yaml:"kernel_pages"`

	// UserPageLimit caps the user pool. palloc.NoLimit splits free memory
	// evenly between the pools.
	UserPageLimit int `yaml:"user_page_limit"`

	// FillOnFree overwrites freed pages and blocks with 0xcc.
	FillOnFree bool `yaml:"fill_on_free"`

	// Logger receives boot and allocator diagnostics. Nil uses the process
	// logger.
	Logger *slog.Logger `yaml:"-"`
}

// DefaultOptions returns 4 MiB of RAM, a 64 KiB kernel image, no user page
// limit and fill-on-free enabled.
func DefaultOptions() Options {
	return Options{
		RAMPages:      DefaultRAMPages,
		KernelPages:   DefaultKernelPages,
		UserPageLimit: palloc.NoLimit,
		FillOnFree:    true,
	}
}

// FreeStart returns the physical address where free memory begins.
func (o Options) FreeStart() uint32 {
	return format.LowMemEnd + uint32(o.KernelPages)*format.PageSize
}

// Validate checks that the options describe a machine with free memory.
func (o Options) Validate() error {
	switch {
	case o.RAMPages <= 0:
		return fmt.Errorf("%w: ram_pages must be positive, got %d", ErrBadOptions, o.RAMPages)
	case o.RAMPages >= format.MaxPhysMem/format.PageSize:
		return fmt.Errorf("%w: %d pages of RAM exceeds the %d MiB the kernel can map",
			ErrBadOptions, o.RAMPages, format.MaxPhysMem>>20)
	case o.KernelPages < 0:
		return fmt.Errorf("%w: kernel_pages must not be negative, got %d", ErrBadOptions, o.KernelPages)
	case o.KernelPages >= o.RAMPages:
		return fmt.Errorf("%w: a %d page kernel image does not fit in %d pages of RAM",
			ErrBadOptions, o.KernelPages, o.RAMPages)
	case o.UserPageLimit < 0:
		return fmt.Errorf("%w: user_page_limit must not be negative, got %d", ErrBadOptions, o.UserPageLimit)
	case uint64(o.FreeStart()) >= uint64(o.RAMPages)*format.PageSize:
		return fmt.Errorf("%w: %d pages of RAM leave nothing above the kernel image at %#x",
			ErrBadOptions, o.RAMPages, o.FreeStart())
	}
	return nil
}
