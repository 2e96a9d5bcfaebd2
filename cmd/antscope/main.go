package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// newRootCmd builds the command tree. Tests build a fresh tree per case so
// flag state never leaks between them.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "antscope",
		Short: "ANT+ device profile inspector",
		Long: `ANT+ command-line tool that provides:

- Replay recorded ANT sessions (YAML captures or raw serial streams)
- Track device discovery, liveness and teardown through the device registry
- Decode individual data pages with any supported device profile
- List supported device families and their broadcast periods

Ideal for sensor firmware development, capture analysis and profile debugging.`,
		Version: formatVersion(version),

		// Silence Cobra's "Error:" prefix - main() prints clean errors
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate(fmt.Sprintf("antscope %s (commit %s, built %s)\n", formatVersion(version), commit, date))

	// Add subcommands
	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newDecodeCmd())
	rootCmd.AddCommand(newFamiliesCmd())

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML configuration file")

	// Add -v as a short flag for --version
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}
