package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/joshuapare/kernkit/internal/format"
	"github.com/joshuapare/kernkit/internal/physmem"
	"github.com/joshuapare/kernkit/kernel/palloc"
)

const (
	usedCell = "█"
	freeCell = "·"
)

var (
	mapWidth   int
	mapPages   int
	mapFreeNth int
	mapMalloc  []int
)

func init() {
	cmd := newMapCmd()
	cmd.Flags().IntVar(&mapWidth, "width", 64, "Pages per row")
	cmd.Flags().IntVar(&mapPages, "alloc", 0, "Allocate this many single kernel pages first")
	cmd.Flags().IntVar(&mapFreeNth, "free-every", 0, "Then free every Nth of those pages")
	cmd.Flags().IntSliceVar(&mapMalloc, "malloc", nil, "Malloc blocks of these sizes first")
	rootCmd.AddCommand(cmd)
}

func newMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Draw which pages of each pool are in use",
		Long: `The map command boots a kernel, optionally allocates pages and blocks
to shape the pools, and draws one cell per page: used pages as solid
blocks and free pages as dots.

Example:
  kernctl map --alloc 40 --free-every 3
  kernctl map --malloc 20,20,2000,5000 --no-color`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap()
		},
	}
	return cmd
}

// PoolMap is the JSON form of one pool's map.
type PoolMap struct {
	Stats palloc.Stats `json:"stats"`
	Used  string       `json:"used"` // one '1' or '0' per page
}

func runMap() error {
	if mapWidth <= 0 {
		return fmt.Errorf("--width must be positive, got %d", mapWidth)
	}
	k, err := bootKernel()
	if err != nil {
		return err
	}
	defer k.Close()

	for i := range mapPages {
		p := k.Pages.GetPage(k.Main, 0)
		if p == physmem.Null {
			return fmt.Errorf("kernel pool exhausted after %d pages", i)
		}
		if mapFreeNth > 0 && (i+1)%mapFreeNth == 0 {
			k.Pages.FreePage(k.Main, p)
		}
	}
	for _, size := range mapMalloc {
		if k.Heap.Malloc(k.Main, size) == physmem.Null {
			return fmt.Errorf("malloc(%d) failed", size)
		}
	}

	pools := []*palloc.Pool{k.Pages.Kernel(), k.Pages.User()}
	if jsonOut {
		out := make([]PoolMap, 0, len(pools))
		for _, p := range pools {
			out = append(out, PoolMap{
				Stats: k.Pages.Stats(k.Main, p),
				Used:  bitString(k.Pages.UsageMap(k.Main, p)),
			})
		}
		return printJSON(out)
	}

	styles := newMapStyles(!noColor)
	var boxes []string
	for _, p := range pools {
		boxes = append(boxes, renderPoolMap(k.Pages.Stats(k.Main, p), k.Pages.UsageMap(k.Main, p), mapWidth, styles))
	}
	if !quiet {
		fmt.Fprintln(os.Stdout, lipgloss.JoinVertical(lipgloss.Left, boxes...))
	}
	return nil
}

// renderPoolMap draws width pages per row, each row labelled with the
// address of its first page.
func renderPoolMap(st palloc.Stats, used []bool, width int, s mapStyles) string {
	var b strings.Builder
	b.WriteString(s.title.Render(fmt.Sprintf("%s  %d/%d used, largest free run %d",
		st.Name, st.Used, st.Pages, st.LargestFree)))
	for row := 0; row < len(used); row += width {
		b.WriteByte('\n')
		addr := uint32(st.Base) + uint32(row)*format.PageSize
		b.WriteString(s.label.Render(fmt.Sprintf("%08x ", addr)))
		for _, u := range used[row:min(row+width, len(used))] {
			if u {
				b.WriteString(s.used.Render(usedCell))
			} else {
				b.WriteString(s.free.Render(freeCell))
			}
		}
	}
	return s.box.Render(b.String())
}

func bitString(used []bool) string {
	out := make([]byte, len(used))
	for i, u := range used {
		out[i] = '0'
		if u {
			out[i] = '1'
		}
	}
	return string(out)
}
