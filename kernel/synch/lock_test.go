package synch

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kernkit/kernel/debug"
	"github.com/joshuapare/kernkit/kernel/thread"
)

func TestLock_AcquireRelease(t *testing.T) {
	r, main := newRegistry(t)
	l := NewLock(r)

	require.False(t, l.HeldBy(main))
	l.Acquire(main)
	require.True(t, l.HeldBy(main))
	require.Equal(t, main, l.Holder())

	l.Release(main)
	require.False(t, l.HeldBy(main))
	require.Equal(t, thread.None, l.Holder())
}

func TestLock_DoubleAcquirePanics(t *testing.T) {
	r, main := newRegistry(t)
	l := NewLock(r)
	l.Acquire(main)

	kp := debug.Recover(func() { l.Acquire(main) })
	require.NotNil(t, kp)
	require.ErrorIs(t, kp, debug.ErrProgramming)
	require.Contains(t, kp.Msg, "already held")
	require.True(t, l.HeldBy(main))
}

func TestLock_ReleaseByNonHolderPanics(t *testing.T) {
	r, main := newRegistry(t)
	other := r.Register("other")
	l := NewLock(r)

	require.NotNil(t, debug.Recover(func() { l.Release(main) }), "unheld lock")

	l.Acquire(main)
	kp := debug.Recover(func() { l.Release(other) })
	require.NotNil(t, kp)
	require.Contains(t, kp.Msg, "does not hold")
	require.True(t, l.HeldBy(main))
}

func TestLock_TryAcquire(t *testing.T) {
	r, main := newRegistry(t)
	other := r.Register("other")
	l := NewLock(r)

	require.True(t, l.TryAcquire(main))
	require.False(t, l.TryAcquire(other))
	require.NotNil(t, debug.Recover(func() { l.TryAcquire(main) }))

	l.Release(main)
	require.True(t, l.TryAcquire(other))
	require.True(t, l.HeldBy(other))
}

func TestLock_AcquireInInterruptPanics(t *testing.T) {
	r, main := newRegistry(t)
	l := NewLock(r)
	kp := debug.Recover(func() {
		r.Interrupt(main, func() { l.Acquire(main) })
	})
	require.NotNil(t, kp)
	require.Equal(t, thread.None, l.Holder())
}

func TestLock_MutualExclusion(t *testing.T) {
	r, _ := newRegistry(t)
	l := NewLock(r)

	const workers, rounds = 8, 200
	var inside atomic.Int32
	counter := 0

	for range workers {
		r.Spawn("worker", func(self thread.Handle) {
			for range rounds {
				l.Acquire(self)
				assert.Equal(t, int32(1), inside.Add(1), "two holders at once")
				counter++
				inside.Add(-1)
				l.Release(self)
			}
		})
	}
	r.Wait()

	require.Equal(t, workers*rounds, counter)
	require.Equal(t, thread.None, l.Holder())
	require.Zero(t, l.Waiters())
}

func TestLock_WaitersWokenInOrder(t *testing.T) {
	r, main := newRegistry(t)
	rec := &recordingScheduler{Registry: r}
	l := NewLock(rec)
	l.Acquire(main)

	hs := spawnInOrder(t, r, 3, l.Waiters, func(self thread.Handle) {
		l.Acquire(self)
		l.Release(self)
	})
	l.Release(main)
	r.Wait()

	require.Equal(t, hs, rec.order())
}
