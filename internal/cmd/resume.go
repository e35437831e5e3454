package cmd

import (
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume an interrupted generation run",
	Long:  `Resume is shorthand for 'appforge run --resume'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runResume = true
		return runCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
