package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kernkit/internal/physmem"
	"github.com/joshuapare/kernkit/kernel"
	"github.com/joshuapare/kernkit/kernel/debug"
	"github.com/joshuapare/kernkit/kernel/malloc"
	"github.com/joshuapare/kernkit/kernel/palloc"
	"github.com/joshuapare/kernkit/kernel/thread"
)

var (
	stressThreads int
	stressRounds  int
	stressMaxSize int
	stressSeed    uint64
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVar(&stressThreads, "threads", 4, "Number of kernel threads")
	cmd.Flags().IntVar(&stressRounds, "rounds", 1000, "Operations per thread")
	cmd.Flags().IntVar(&stressMaxSize, "max-size", 2*4096, "Largest malloc request in bytes")
	cmd.Flags().Uint64Var(&stressSeed, "seed", 1, "Random seed")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Hammer the allocators from several kernel threads",
		Long: `The stress command boots a kernel and runs a random mix of malloc,
realloc, free and page allocations on several threads at once. Every block
is stamped with its owner and checked before it is freed; some pages are
released from a simulated interrupt handler. At the end all memory must be
back in the pools.

Example:
  kernctl stress --threads 8 --rounds 5000
  kernctl stress --mem 512 --max-size 64 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress()
		},
	}
	return cmd
}

// StressReport summarizes a stress run.
type StressReport struct {
	Threads     int           `json:"threads"`
	Rounds      int           `json:"rounds"`
	Mallocs     int           `json:"mallocs"`
	Reallocs    int           `json:"reallocs"`
	Frees       int           `json:"frees"`
	Pages       int           `json:"pages"`
	IntrFrees   int           `json:"interrupt_frees"`
	Failures    int           `json:"failures"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	Heap        malloc.Stats  `json:"heap"`
	KernelInUse int           `json:"kernel_pages_in_use"`
}

type stressCounts struct {
	mallocs, reallocs, frees, pages, intrFrees, failures int
}

var errCorrupt = errors.New("block corrupted")

func runStress() error {
	if stressThreads <= 0 || stressRounds < 0 || stressMaxSize <= 0 {
		return fmt.Errorf("--threads and --max-size must be positive")
	}
	k, err := bootKernel()
	if err != nil {
		return err
	}
	defer k.Close()

	var (
		mu     sync.Mutex
		total  stressCounts
		errs   []error
		start  = time.Now()
		record = func(c stressCounts, err error) {
			mu.Lock()
			defer mu.Unlock()
			total.mallocs += c.mallocs
			total.reallocs += c.reallocs
			total.frees += c.frees
			total.pages += c.pages
			total.intrFrees += c.intrFrees
			total.failures += c.failures
			if err != nil {
				errs = append(errs, err)
			}
		}
	)

	for w := range stressThreads {
		k.Threads.Spawn(fmt.Sprintf("stress-%d", w), func(self thread.Handle) {
			var c stressCounts
			var werr error
			if kp := debug.Recover(func() { werr = stressWorker(k, self, w, &c) }); kp != nil {
				werr = kp
			}
			record(c, werr)
		})
	}
	k.Threads.Wait()

	report := StressReport{
		Threads:     stressThreads,
		Rounds:      stressRounds,
		Mallocs:     total.mallocs,
		Reallocs:    total.reallocs,
		Frees:       total.frees,
		Pages:       total.pages,
		IntrFrees:   total.intrFrees,
		Failures:    total.failures,
		Elapsed:     time.Since(start),
		Heap:        k.Heap.Stats(k.Main),
		KernelInUse: k.Pages.Stats(k.Main, k.Pages.Kernel()).Used,
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if report.KernelInUse != 0 {
		return fmt.Errorf("%d kernel pages still in use after every thread freed its memory", report.KernelInUse)
	}

	if jsonOut {
		return printJSON(report)
	}
	printInfo("\nStress Results:\n")
	printInfo("  Threads: %d x %d rounds in %s\n", report.Threads, report.Rounds, report.Elapsed.Round(time.Millisecond))
	printInfo("  malloc: %d  realloc: %d  free: %d\n", report.Mallocs, report.Reallocs, report.Frees)
	printInfo("  pages: %d (%d freed from interrupt handlers)\n", report.Pages, report.IntrFrees)
	printInfo("  failed requests: %d\n", report.Failures)
	printInfo("\nSize Classes:\n")
	for _, c := range report.Heap.Classes {
		printInfo("  %5d bytes  %3d arenas requested, %3d returned\n",
			c.BlockSize, c.PagesRequested, c.PagesReturned)
	}
	printInfo("\n  ✓ All memory returned to the pools\n")
	return nil
}

type stressBlock struct {
	p    physmem.Addr
	size int
}

// stressWorker runs one thread's share of the workload and frees everything
// it still holds before returning.
func stressWorker(k *kernel.Kernel, self thread.Handle, w int, c *stressCounts) error {
	rng := rand.New(rand.NewPCG(stressSeed, uint64(w)))
	stamp := byte(w%250 + 1)
	var held []stressBlock

	check := func(b stressBlock) error {
		for i, x := range k.Memory.Bytes(b.p, b.size) {
			if x != stamp {
				return fmt.Errorf("thread %d: %w: %#x+%d is %#02x, want %#02x", w, errCorrupt, uint32(b.p), i, x, stamp)
			}
		}
		return nil
	}
	drop := func(i int) error {
		if err := check(held[i]); err != nil {
			return err
		}
		k.Heap.Free(self, held[i].p)
		c.frees++
		held[i] = held[len(held)-1]
		held = held[:len(held)-1]
		return nil
	}

	for range stressRounds {
		switch op := rng.IntN(10); {
		case op < 4:
			size := 1 + rng.IntN(stressMaxSize)
			p := k.Heap.Malloc(self, size)
			c.mallocs++
			if p == physmem.Null {
				c.failures++
				continue
			}
			k.Memory.Fill(p, size, stamp)
			held = append(held, stressBlock{p, size})
		case op < 7 && len(held) > 0:
			if err := drop(rng.IntN(len(held))); err != nil {
				return err
			}
		case op < 9 && len(held) > 0:
			i := rng.IntN(len(held))
			if err := check(held[i]); err != nil {
				return err
			}
			size := 1 + rng.IntN(stressMaxSize)
			p := k.Heap.Realloc(self, held[i].p, size)
			c.reallocs++
			if p == physmem.Null {
				c.failures++
				continue
			}
			k.Memory.Fill(p, size, stamp)
			held[i] = stressBlock{p, size}
		default:
			page := k.Pages.GetPage(self, palloc.PalZero)
			c.pages++
			if page == physmem.Null {
				c.failures++
				continue
			}
			k.Threads.Interrupt(self, func() { k.Pages.FreePage(self, page) })
			c.intrFrees++
		}
	}
	for len(held) > 0 {
		if err := drop(len(held) - 1); err != nil {
			return err
		}
	}
	return nil
}
