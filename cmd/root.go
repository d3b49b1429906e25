// Package cmd defines and implements the CLI commands for the tagtally
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tagtally",
		Short: "Counts script tags across a list of URLs.",
		Long: `tagtally fetches every URL in an input list exactly once, counts the
<script> tags on each page, and records the outcome durably. Interrupted
runs resume where they left off: URLs with a recorded outcome are never
fetched again.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in defaults plus TAGTALLY_* env vars)")
	cmd.AddCommand(newRunCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
