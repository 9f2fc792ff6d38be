package main

import (
	"github.com/spf13/cobra"
)

var updateLimit int

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Run scrape, extract and summarize in sequence",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "update")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := scrapeStage(ctx, env); err != nil {
			return err
		}
		tracker := newCostTracker()
		opts := extractOptions(env, updateLimit, false)
		if err := extractStage(ctx, env, newClassifier(tracker, opts.KnownNames), opts, tracker); err != nil {
			return err
		}
		return summarizeStage(ctx, env)
	},
}

func init() {
	updateCmd.Flags().IntVar(&updateLimit, "limit", 0, "max comments to classify this run (0 = all)")
	rootCmd.AddCommand(updateCmd)
}
