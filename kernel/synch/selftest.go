package synch

import (
	"github.com/joshuapare/kernkit/internal/logger"
	"github.com/joshuapare/kernkit/kernel/thread"
)

// selfTestRounds is how many times control ping-pongs between the threads.
const selfTestRounds = 10

// SemaSelfTest makes control ping-pong between self and a new thread using a
// pair of semaphores. It returns once both sides have completed every round;
// a broken semaphore makes it hang or panic.
func SemaSelfTest(sched Spawner, self thread.Handle) {
	logger.Info("testing semaphores")
	ping := NewSemaphore(sched, 0)
	pong := NewSemaphore(sched, 0)

	helper := sched.Spawn("sema-test", func(h thread.Handle) {
		for range selfTestRounds {
			ping.Down(h)
			pong.Up(h)
		}
	})
	for range selfTestRounds {
		ping.Up(self)
		pong.Down(self)
	}
	sched.Join(helper)
	logger.Info("semaphore self test done", "rounds", selfTestRounds)
}
