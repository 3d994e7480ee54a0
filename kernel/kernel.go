package kernel

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/kernkit/internal/logger"
	"github.com/joshuapare/kernkit/internal/physmem"
	"github.com/joshuapare/kernkit/kernel/intr"
	"github.com/joshuapare/kernkit/kernel/malloc"
	"github.com/joshuapare/kernkit/kernel/palloc"
	"github.com/joshuapare/kernkit/kernel/synch"
	"github.com/joshuapare/kernkit/kernel/thread"
)

// Kernel is a booted simulated kernel. All of its parts are shared by every
// thread; Main is the thread that booted it.
type Kernel struct {
	Options    Options
	Memory     *physmem.Memory
	Interrupts *intr.Controller
	Threads    *thread.Registry
	Main       thread.Handle
	Pages      *palloc.Allocator
	Heap       *malloc.Allocator

	log *slog.Logger
}

// Boot brings up a kernel described by opts.
func Boot(opts Options) (*Kernel, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = logger.L
	}

	mem, err := physmem.New(opts.RAMPages)
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	log.Info("physical memory mapped", "pages", mem.Pages(), "kib", mem.Size()>>10)

	ctl := intr.New()
	threads := thread.NewRegistry(ctl)
	main := threads.Register("main")

	pages, err := palloc.New(mem, threads, opts.UserPageLimit, &palloc.Config{
		FreeStart:  opts.FreeStart(),
		NoFreeFill: !opts.FillOnFree,
		Logger:     log.With("component", "palloc"),
	})
	if err != nil {
		_ = mem.Close()
		return nil, fmt.Errorf("kernel: %w", err)
	}
	heap := malloc.New(pages, threads, &malloc.Config{
		NoFreeFill: !opts.FillOnFree,
		Logger:     log.With("component", "malloc"),
	})

	return &Kernel{
		Options:    opts,
		Memory:     mem,
		Interrupts: ctl,
		Threads:    threads,
		Main:       main,
		Pages:      pages,
		Heap:       heap,
		log:        log,
	}, nil
}

// SelfTest runs the semaphore ping-pong test on the main thread.
func (k *Kernel) SelfTest() {
	synch.SemaSelfTest(k.Threads, k.Main)
}

// Close waits for spawned threads to finish and unmaps physical memory.
// Any address handed out by the kernel is invalid afterwards.
func (k *Kernel) Close() error {
	k.Threads.Wait()
	if err := k.Memory.Close(); err != nil {
		return fmt.Errorf("kernel: %w", err)
	}
	k.log.Info("kernel shut down")
	return nil
}
