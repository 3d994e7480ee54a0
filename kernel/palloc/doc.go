// Package palloc is the page allocator. It hands out memory in page-size (or
// page-multiple) chunks from two pools carved out of RAM at boot.
//
// # Pools
//
// Usable memory starts above the kernel image and runs to the end of RAM.
// By default it is split evenly between the kernel pool and the user pool;
// the user pool can be capped (the "-ul" kernel option), leaving the rest to
// the kernel. The user pool is for user process pages, the kernel pool for
// everything else, including the block allocator's arenas.
//
// Each pool's usage is tracked with a bitmap, one bit per page, stored in the
// first pages of the pool itself. A request for n pages scans the bitmap for
// n consecutive clear bits and sets them: first fit.
//
// # Fragmentation
//
// The pools are subject to fragmentation. A request for n contiguous pages
// can fail even though n or more pages are free, because the free pages are
// separated by used ones. Single-page requests never fail for this reason, so
// multi-page requests should be kept to a minimum.
//
// # Context Rules
//
// Pages may not be allocated from interrupt context, but they may be freed.
// Freed pages are filled with 0xcc as a debugging aid.
//
// # Usage Example
//
//	pages, err := palloc.New(mem, threads, palloc.NoLimit, nil)
//	if err != nil {
//	    return err
//	}
//	kpage := pages.GetPage(self, palloc.PalZero)
//	if kpage == physmem.Null {
//	    return errOutOfPages
//	}
//	defer pages.FreePage(self, kpage)
package palloc
