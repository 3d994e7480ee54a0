package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kernkit/internal/format"
	"github.com/joshuapare/kernkit/kernel"
	"github.com/joshuapare/kernkit/kernel/malloc"
	"github.com/joshuapare/kernkit/kernel/palloc"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Boot a kernel and report its memory layout",
		Long: `The info command boots a kernel and shows the physical memory size,
where free memory begins, the layout of the kernel and user pools and the
block allocator's size classes.

Example:
  kernctl info
  kernctl info --mem 4096 --ul 256
  kernctl info --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo()
		},
	}
	return cmd
}

// KernelInfo is the info command's report.
type KernelInfo struct {
	RAMPages  int                 `json:"ram_pages"`
	FreeStart uint32              `json:"free_start"`
	Pools     []palloc.Stats      `json:"pools"`
	Heap      malloc.Stats        `json:"heap"`
	Options   kernelOptionsReport `json:"options"`
}

type kernelOptionsReport struct {
	KernelPages   int  `json:"kernel_pages"`
	UserPageLimit int  `json:"user_page_limit"`
	FillOnFree    bool `json:"fill_on_free"`
}

func collectInfo(k *kernel.Kernel) KernelInfo {
	limit := k.Options.UserPageLimit
	if limit == palloc.NoLimit {
		limit = -1
	}
	return KernelInfo{
		RAMPages:  k.Memory.Pages(),
		FreeStart: k.Options.FreeStart(),
		Pools: []palloc.Stats{
			k.Pages.Stats(k.Main, k.Pages.Kernel()),
			k.Pages.Stats(k.Main, k.Pages.User()),
		},
		Heap: k.Heap.Stats(k.Main),
		Options: kernelOptionsReport{
			KernelPages:   k.Options.KernelPages,
			UserPageLimit: limit,
			FillOnFree:    k.Options.FillOnFree,
		},
	}
}

func runInfo() error {
	k, err := bootKernel()
	if err != nil {
		return err
	}
	defer k.Close()

	info := collectInfo(k)
	if jsonOut {
		return printJSON(info)
	}

	printInfo("\nKernel Information:\n")
	printInfo("  RAM: %d pages (%s)\n", info.RAMPages, formatBytes(info.RAMPages*format.PageSize))
	printInfo("  Free memory starts at: %#x\n", info.FreeStart)
	if info.Options.UserPageLimit >= 0 {
		printInfo("  User page limit: %d\n", info.Options.UserPageLimit)
	}
	printInfo("  Fill on free: %t\n", info.Options.FillOnFree)

	printInfo("\nPools:\n")
	for _, p := range info.Pools {
		printInfo("  %s: %d pages at %#x (+%d bitmap), %d used\n",
			p.Name, p.Pages, uint32(p.Base), p.BitmapPages, p.Used)
	}

	printInfo("\nSize Classes:\n")
	for _, c := range info.Heap.Classes {
		printInfo("  %5d bytes  %4d blocks per arena\n", c.BlockSize, c.BlocksPerArena)
	}
	return nil
}

func formatBytes(n int) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d bytes", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
