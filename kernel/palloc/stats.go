package palloc

import (
	"github.com/joshuapare/kernkit/internal/physmem"
	"github.com/joshuapare/kernkit/kernel/thread"
)

// Stats is a snapshot of one pool.
type Stats struct {
	Name        string       `json:"name"`
	Base        physmem.Addr `json:"base"`
	Pages       int          `json:"pages"`
	BitmapPages int          `json:"bitmap_pages"`
	Used        int          `json:"used"`
	Free        int          `json:"free"`
	LargestFree int          `json:"largest_free_run"`
	Gets        uint64       `json:"gets"`
	Frees       uint64       `json:"frees"`
	Failures    uint64       `json:"failures"`
}

// Stats returns a consistent snapshot of the pool, taken with interrupts off.
func (a *Allocator) Stats(self thread.Handle, p *Pool) Stats {
	old := a.sched.DisableInterrupts(self)
	used := p.used.Count(0, p.pages, true)
	largest := p.used.LongestRun(false)
	a.sched.SetInterruptLevel(self, old)

	return Stats{
		Name:        p.name,
		Base:        p.base,
		Pages:       p.pages,
		BitmapPages: p.bitmapPages,
		Used:        used,
		Free:        p.pages - used,
		LargestFree: largest,
		Gets:        p.gets.Load(),
		Frees:       p.frees.Load(),
		Failures:    p.failures.Load(),
	}
}

// UsageMap returns one entry per page of p, true where the page is in use.
func (a *Allocator) UsageMap(self thread.Handle, p *Pool) []bool {
	old := a.sched.DisableInterrupts(self)
	defer a.sched.SetInterruptLevel(self, old)

	m := make([]bool, p.pages)
	for i := range m {
		m[i] = p.used.Test(i)
	}
	return m
}
