package thread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kernkit/kernel/debug"
	"github.com/joshuapare/kernkit/kernel/intr"
)

func TestRegister_Handles(t *testing.T) {
	r := NewRegistry(nil)
	main := r.Register("main")
	idle := r.Register("idle")

	require.Equal(t, Handle(1), main)
	require.Equal(t, Handle(2), idle)
	require.Equal(t, "idle", r.Name(idle))
	require.Equal(t, Running, r.Status(main))
	require.Equal(t, 2, r.Len())
}

func TestLookup_InvalidHandle(t *testing.T) {
	r := NewRegistry(nil)
	kp := debug.Recover(func() { r.Name(None) })
	require.NotNil(t, kp)
	kp = debug.Recover(func() { r.Name(7) })
	require.NotNil(t, kp)
}

func TestSpawnJoin(t *testing.T) {
	r := NewRegistry(nil)
	var got Handle
	h := r.Spawn("worker", func(self Handle) { got = self })
	r.Join(h)

	require.Equal(t, h, got)
	require.Equal(t, Dying, r.Status(h))
}

func TestJoin_NotSpawned(t *testing.T) {
	r := NewRegistry(nil)
	h := r.Register("main")
	require.NotNil(t, debug.Recover(func() { r.Join(h) }))
}

// waitStatus polls until h reaches want.
func waitStatus(t *testing.T, r *Registry, h Handle, want Status) {
	t.Helper()
	require.Eventually(t, func() bool { return r.Status(h) == want },
		2*time.Second, time.Millisecond)
}

func TestBlockUnblock(t *testing.T) {
	r := NewRegistry(nil)
	main := r.Register("main")

	woke := make(chan struct{})
	sleeper := r.Spawn("sleeper", func(self Handle) {
		old := r.DisableInterrupts(self)
		r.Block(self)
		assert.Equal(t, intr.Off, r.Interrupts().Get(intr.Owner(self)),
			"interrupts are off again when Block returns")
		r.SetInterruptLevel(self, old)
		close(woke)
	})

	waitStatus(t, r, sleeper, Blocked)

	old := r.DisableInterrupts(main)
	r.Unblock(sleeper)
	r.SetInterruptLevel(main, old)

	<-woke
	r.Join(sleeper)
}

func TestBlock_RequiresInterruptsOff(t *testing.T) {
	r := NewRegistry(nil)
	main := r.Register("main")
	kp := debug.Recover(func() { r.Block(main) })
	require.NotNil(t, kp)
	require.Contains(t, kp.Msg, "interrupts on")
}

func TestBlock_InInterruptContext(t *testing.T) {
	r := NewRegistry(nil)
	main := r.Register("main")
	kp := debug.Recover(func() {
		r.Interrupt(main, func() { r.Block(main) })
	})
	require.NotNil(t, kp)
	require.Contains(t, kp.Msg, "interrupt context")
}

func TestUnblock_NotBlocked(t *testing.T) {
	r := NewRegistry(nil)
	other := r.Register("other")
	kp := debug.Recover(func() { r.Unblock(other) })
	require.NotNil(t, kp)
	require.Contains(t, kp.Msg, "is running")
}

func TestInterrupt_Context(t *testing.T) {
	r := NewRegistry(nil)
	main := r.Register("main")
	var inside bool
	r.Interrupt(main, func() { inside = r.InInterrupt(main) })
	require.True(t, inside)
	require.False(t, r.InInterrupt(main))
}

func TestWait(t *testing.T) {
	r := NewRegistry(nil)
	for range 4 {
		r.Spawn("w", func(Handle) { time.Sleep(time.Millisecond) })
	}
	r.Wait()
	for h := Handle(1); int(h) <= r.Len(); h++ {
		require.Equal(t, Dying, r.Status(h))
	}
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "blocked", Blocked.String())
	require.Equal(t, "status(9)", Status(9).String())
}
