// Command annotate-sync rebuilds annotators and assignments from the evaluation
// sheet, optionally refreshing the question catalog from the golden sheet first.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := getSyncCmd()
	cmd.SilenceUsage = true
	return cmd
}
