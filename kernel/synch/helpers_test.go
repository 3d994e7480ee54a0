package synch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kernkit/kernel/thread"
)

// recordingScheduler remembers the order in which threads were unblocked.
type recordingScheduler struct {
	*thread.Registry

	mu        sync.Mutex
	unblocked []thread.Handle
}

func (r *recordingScheduler) Unblock(h thread.Handle) {
	r.mu.Lock()
	r.unblocked = append(r.unblocked, h)
	r.mu.Unlock()
	r.Registry.Unblock(h)
}

func (r *recordingScheduler) order() []thread.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]thread.Handle(nil), r.unblocked...)
}

func newRegistry(t *testing.T) (*thread.Registry, thread.Handle) {
	t.Helper()
	r := thread.NewRegistry(nil)
	return r, r.Register("main")
}

// eventually waits until cond holds.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, time.Millisecond, msg)
}

// spawnInOrder starts n threads running fn one at a time, waiting after each
// spawn until queued reports the thread is asleep, so the threads enter the
// waiter queue in spawn order.
func spawnInOrder(t *testing.T, r *thread.Registry, n int, queued func() int, fn func(self thread.Handle)) []thread.Handle {
	t.Helper()
	hs := make([]thread.Handle, 0, n)
	for i := range n {
		hs = append(hs, r.Spawn("waiter", fn))
		eventually(t, func() bool { return queued() == i+1 }, "waiter did not block")
	}
	return hs
}
