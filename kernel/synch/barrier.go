package synch

import "sync/atomic"

var fence atomic.Uint32

// Barrier is an optimization barrier: neither the compiler nor the CPU moves
// memory operations across it. Go has no bare compiler fence, so Barrier
// performs a sequentially consistent atomic load, the cheapest operation the
// memory model orders with everything around it. It has no other effect.
func Barrier() {
	fence.Load()
}
