package main

import (
	"fmt"
	"github.com/powtwo/buddysim/buddy"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
	"os"
)

var (
	totalMemory int
	jsonOut     bool
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "buddysim",
	Short: "Simulate a power-of-two buddy memory allocator",
	Long: `buddysim simulates a power-of-two buddy memory allocator over a fixed-size
address space. Allocation requests are rounded up to the next power of two and
carved out of the smallest free block that can hold them, splitting larger
blocks in half as necessary. Freed blocks merge back together with their buddy
whenever that buddy is also free.

The simulator is driven by an interactive menu on standard input. All sizes
and addresses are expressed in KB.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimulator(cmd)
	},
}

func init() {
	rootCmd.Flags().IntVar(&totalMemory, "total-memory", 1024, "Size of the simulated region in KB (must be a power of two)")
	rootCmd.Flags().BoolVar(&jsonOut, "json", false, "Print the memory state as JSON")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging to stderr")
}

func runSimulator(cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.HandlerOptions{Level: logLevel}.NewTextHandler(os.Stderr))

	allocator, err := buddy.New(logger, totalMemory)
	if err != nil {
		return err
	}

	m := &menu{
		in:        cmd.InOrStdin(),
		out:       cmd.OutOrStdout(),
		allocator: allocator,
		jsonOut:   jsonOut,
	}

	err = m.run()
	if err != nil {
		return err
	}

	allocator.DebugLogAllAllocations()

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
