package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/closure-tracker/internal/blob"
	"github.com/sells-group/closure-tracker/internal/config"
	"github.com/sells-group/closure-tracker/internal/extract"
	"github.com/sells-group/closure-tracker/internal/model"
	"github.com/sells-group/closure-tracker/internal/summary"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Rebuild the per-bank summary from the extraction log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "summarize")
		if err != nil {
			return err
		}
		defer env.Close()

		return summarizeStage(ctx, env)
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}

func summarizeStage(ctx context.Context, env *stageEnv) error {
	return recordRun(ctx, env.Store, model.StageSummarize, func(ctx context.Context) (model.RunResult, error) {
		return runSummarize(ctx, env.Backend, env.Files, env.Vocab.Canonical, time.Now())
	})
}

// runSummarize rebuilds the summary and stamps the metadata file when the
// summary changed.
func runSummarize(ctx context.Context, backend blob.Backend, files config.DataConfig, canon func(string) string, now time.Time) (model.RunResult, error) {
	entries, err := extract.LoadEntries(ctx, backend, files.ExtractedFile)
	if err != nil {
		return model.RunResult{}, err
	}

	s := summary.Build(entries, canon)
	changed, err := summary.Write(ctx, backend, files.SummaryFile, s)
	if err != nil {
		return model.RunResult{}, err
	}
	if changed {
		if err := summary.WriteMetadata(ctx, backend, files.MetadataFile, now); err != nil {
			return model.RunResult{}, err
		}
	}

	return model.RunResult{Total: len(s), Written: changed}, nil
}
