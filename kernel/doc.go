// Package kernel wires the simulated machine together: physical memory, the
// interrupt controller, the thread registry and both allocators.
//
// Boot order is fixed. RAM is mapped first, then the thread registry is
// created and the booting thread registered as "main", then the page
// allocator carves free memory into pools, and only then is the block
// allocator built on top of it.
//
//	k, err := kernel.Boot(kernel.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer k.Close()
//
//	p := k.Heap.Malloc(k.Main, 64)
//	defer k.Heap.Free(k.Main, p)
package kernel
