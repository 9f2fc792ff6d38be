package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/closure-tracker/internal/ci"
)

var checkChangesDir string

var checkChangesCmd = &cobra.Command{
	Use:   "check-changes <file>...",
	Short: "Exit 0 when any file differs from git HEAD, 1 otherwise",
	Long:  "CI helper for the scheduled refresh: decides whether the data files need committing.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return ci.AnyChanged(cmd.Context(), checkChangesDir, args)
	},
}

func init() {
	checkChangesCmd.Flags().StringVar(&checkChangesDir, "repo", ".", "git working tree to inspect")
	rootCmd.AddCommand(checkChangesCmd)
}
