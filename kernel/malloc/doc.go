// Package malloc is the kernel's general purpose block allocator, layered on
// the page allocator.
//
// # Size Classes
//
// Each request is rounded up to a power of two and served from a descriptor
// for that block size: 16, 32, 64 and so on up to a quarter page. A
// descriptor keeps a list of its free blocks. When the list runs dry it takes
// a fresh page from the kernel pool and carves it into an arena of equal
// blocks behind a small header.
//
// Requests bigger than a quarter page skip the descriptors. They get a run of
// contiguous pages with the same arena header at the front, its descriptor
// field zero and its free count holding the page count.
//
// # Arena Layout
//
//	0x00  magic       format.ArenaMagic
//	0x04  descriptor  size class index + 1, 0 for a large block
//	0x08  free count  free blocks in the arena, or pages in a large block
//	0x0c  reserved
//	0x10  blocks...
//
// A free block holds its free-list links in its first eight bytes, next
// then prev, as little-endian addresses. The list lives entirely in the
// simulated RAM; the descriptor only records its ends.
//
// # Returning Memory
//
// When every block of an arena is free again, its blocks are unlinked from
// the free list and the page goes back to the page allocator.
//
// # Context Rules
//
// Every operation takes the descriptor lock and may sleep, so none may be
// called from an external interrupt handler.
package malloc
