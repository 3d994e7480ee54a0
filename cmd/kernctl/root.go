package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kernkit/internal/logger"
	"github.com/joshuapare/kernkit/kernel"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	noColor    bool
	configPath string
	memPages   int
	userLimit  int
	cmdline    string
)

var rootCmd = &cobra.Command{
	Use:   "kernctl",
	Short: "Boot a simulated kernel and inspect its memory allocators",
	Long: `kernctl boots a small simulated kernel (physical memory, page pools,
block allocator, threads and semaphores) and runs inspection commands and
workloads against it.

The machine is described by defaults, an optional YAML config, a kernel
command line and the flags below, applied in that order.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.Init(logger.Options{Enabled: true, Level: slog.LevelDebug, JSON: jsonOut})
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log kernel diagnostics to stderr")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML file with boot options")
	rootCmd.PersistentFlags().IntVar(&memPages, "mem", 0, "RAM size in pages (overrides config)")
	rootCmd.PersistentFlags().IntVar(&userLimit, "ul", -1, "User pool page limit (overrides config)")
	rootCmd.PersistentFlags().
		StringVar(&cmdline, "cmdline", "", `Kernel command line, e.g. "-ul=64 -mem=2048"`)
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootOptions assembles boot options from the config file, the kernel
// command line and the flags.
func bootOptions() (kernel.Options, error) {
	opts := kernel.DefaultOptions()
	if configPath != "" {
		var err error
		if opts, err = kernel.LoadConfig(configPath); err != nil {
			return opts, err
		}
	}
	if cmdline != "" {
		rest, err := kernel.ParseCommandLine(&opts, strings.Fields(cmdline))
		if err != nil {
			return opts, err
		}
		if len(rest) > 0 {
			return opts, fmt.Errorf("kernel command line: unexpected action %q", rest[0])
		}
	}
	if memPages > 0 {
		opts.RAMPages = memPages
	}
	if userLimit >= 0 {
		opts.UserPageLimit = userLimit
	}
	return opts, nil
}

// bootKernel boots a kernel from the global flags.
func bootKernel() (*kernel.Kernel, error) {
	opts, err := bootOptions()
	if err != nil {
		return nil, err
	}
	printVerbose("Booting with %d pages of RAM\n", opts.RAMPages)
	return kernel.Boot(opts)
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
