// Package format holds the machine constants shared by the memory and
// synchronization packages: page geometry, the kernel's view of physical
// memory, the end of low memory and the markers written into allocator headers.
// Keeping them in one leaf package lets the allocators, the CLI and the tests
// agree on layout without importing each other.
package format

const (
	// PageShift is log2 of the page size.
	PageShift = 12

	// PageSize is the size of one page in bytes (4 KiB on 80x86).
	PageSize = 1 << PageShift

	// PageMask selects the offset-within-page bits of an address.
	PageMask = PageSize - 1

	// PhysBase is the kernel virtual address at which all physical memory is
	// mapped. Physical address p is visible to the kernel at PhysBase + p.
	// Must be aligned on a 4 MiB boundary.
	PhysBase = 0xc0000000

	// MaxPhysMem bounds the RAM the kernel can map above PhysBase. RAM must be
	// strictly smaller so that the end-of-RAM address still fits in 32 bits.
	MaxPhysMem = 0x40000000
)

// LowMemEnd is the end of low memory (1 MiB). The loader places the kernel
// image here; nothing above it is touched before the page allocator takes
// over.
const LowMemEnd = 0x100000

const (
	// FreePattern is written over every freed page and block so that a
	// use-after-free reads an obviously bogus value.
	FreePattern byte = 0xcc

	// ArenaMagic marks the first word of every page owned by the block allocator.
	ArenaMagic uint32 = 0x9a548eed

	// ArenaHeaderSize is the size of the header at the start of each arena or
	// large block:
	//   0x00  magic       uint32
	//   0x04  descriptor  uint32 (size class index + 1, 0 for large blocks)
	//   0x08  free count  uint32 (free blocks, or page count for large blocks)
	//   0x0c  reserved    uint32
	ArenaHeaderSize = 0x10

	// ArenaMagicOffset, ArenaDescOffset and ArenaFreeOffset locate the header
	// fields relative to the start of the arena page.
	ArenaMagicOffset = 0x00
	ArenaDescOffset  = 0x04
	ArenaFreeOffset  = 0x08

	// MinBlockSize is the smallest block the block allocator hands out.
	MinBlockSize = 16

	// MaxBlockSize is the largest size class; bigger requests get whole pages.
	MaxBlockSize = PageSize / 4

	// FreeLinkSize is the number of bytes at the head of a free block used for
	// its free-list links (next, prev).
	FreeLinkSize = 8
)
