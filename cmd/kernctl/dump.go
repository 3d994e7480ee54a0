package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kernkit/internal/format"
	"github.com/joshuapare/kernkit/internal/hexdump"
	"github.com/joshuapare/kernkit/internal/physmem"
)

var (
	dumpFree  bool
	dumpBytes int
)

func init() {
	cmd := newDumpCmd()
	cmd.Flags().BoolVar(&dumpFree, "free", false, "Free the blocks before dumping")
	cmd.Flags().IntVar(&dumpBytes, "bytes", 128, "Bytes to dump from the start of each arena")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <size>...",
		Short: "Malloc blocks and hex dump the arenas holding them",
		Long: `The dump command boots a kernel, mallocs a block of each given size,
writes a marker into it and hex dumps the start of every arena involved, so
the arena header, free-list links and 0xcc free fill can be seen.

Example:
  kernctl dump 20 20 20
  kernctl dump 20 5000 --free --bytes 256`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args)
		},
	}
	return cmd
}

// DumpedArena is the JSON form of one dumped arena.
type DumpedArena struct {
	Address uint32   `json:"address"`
	Blocks  []uint32 `json:"blocks"`
	Hex     string   `json:"hex"`
}

func runDump(args []string) error {
	if dumpBytes <= 0 || dumpBytes > format.PageSize {
		return fmt.Errorf("--bytes must be between 1 and %d", format.PageSize)
	}
	sizes := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid size %q", a)
		}
		sizes[i] = n
	}

	k, err := bootKernel()
	if err != nil {
		return err
	}
	defer k.Close()

	var order []physmem.Addr
	arenas := map[physmem.Addr][]uint32{}
	var blocks []physmem.Addr
	for i, size := range sizes {
		b := k.Heap.Malloc(k.Main, size)
		if b == physmem.Null {
			return fmt.Errorf("malloc(%d) failed", size)
		}
		copy(k.Memory.Bytes(b, size), fmt.Sprintf("block %d", i))
		blocks = append(blocks, b)

		a := physmem.Addr(format.PageRoundDown(uint32(b)))
		if _, ok := arenas[a]; !ok {
			order = append(order, a)
		}
		arenas[a] = append(arenas[a], uint32(b))
	}
	if dumpFree {
		// An arena emptied here goes back to its pool and shows up as
		// solid fill; RAM stays mapped so it can still be dumped.
		for _, b := range blocks {
			k.Heap.Free(k.Main, b)
		}
	}

	var out []DumpedArena
	for _, a := range order {
		data := k.Memory.Bytes(a, dumpBytes)
		if jsonOut {
			out = append(out, DumpedArena{Address: uint32(a), Blocks: arenas[a], Hex: hexdump.String(uintptr(a), data, true)})
			continue
		}
		printInfo("\nArena %#x (blocks %s):\n", uint32(a), formatAddrs(arenas[a]))
		if !quiet {
			if err := hexdump.Dump(os.Stdout, uintptr(a), data, true); err != nil {
				return err
			}
		}
	}
	if jsonOut {
		return printJSON(out)
	}
	return nil
}

func formatAddrs(addrs []uint32) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = fmt.Sprintf("%#x", a)
	}
	return strings.Join(parts, " ")
}
