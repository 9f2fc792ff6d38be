package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/closure-tracker/internal/summary"
)

var statsLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print per-bank closure statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "stats")
		if err != nil {
			return err
		}
		defer env.Close()

		s, err := summary.Load(ctx, env.Backend, env.Files.SummaryFile)
		if err != nil {
			return err
		}
		summary.RenderTable(os.Stdout, summary.Stats(s), statsLimit)
		return nil
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsLimit, "limit", 25, "max banks to show (0 = all)")
	rootCmd.AddCommand(statsCmd)
}
