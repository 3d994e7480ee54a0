package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kernkit/kernel/debug"
)

func init() {
	rootCmd.AddCommand(newSelfTestCmd())
}

func newSelfTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run the semaphore ping-pong self test",
		Long: `The selftest command boots a kernel and bounces control between the
main thread and a helper thread ten times through a pair of semaphores.

Example:
  kernctl selftest`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelfTest()
		},
	}
	return cmd
}

func runSelfTest() error {
	k, err := bootKernel()
	if err != nil {
		return err
	}
	defer k.Close()

	start := time.Now()
	if kp := debug.Recover(k.SelfTest); kp != nil {
		return fmt.Errorf("self test failed: %w", kp)
	}
	elapsed := time.Since(start)

	if jsonOut {
		return printJSON(map[string]any{"ok": true, "elapsed_ns": elapsed.Nanoseconds()})
	}
	printInfo("Semaphore self test passed in %s\n", elapsed.Round(time.Microsecond))
	return nil
}
