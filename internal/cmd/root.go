// Package cmd implements the appforge command-line interface.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "appforge",
	Short: "Plan-driven application generator",
	Long: `appforge turns a versioned application plan into a working codebase.
It orders plan nodes by dependency, generates them batch by batch with
bounded agent loops, then runs the project's tests and repairs failures
until the suite passes or the repair budget runs out.`,
	SilenceUsage: true,
}

// ExecuteContext runs the root command under ctx so agent loops and
// subprocesses stop on interrupt.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default appforge.yaml in the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
