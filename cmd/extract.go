package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/closure-tracker/internal/blob"
	"github.com/sells-group/closure-tracker/internal/classify"
	"github.com/sells-group/closure-tracker/internal/config"
	"github.com/sells-group/closure-tracker/internal/cost"
	"github.com/sells-group/closure-tracker/internal/extract"
	"github.com/sells-group/closure-tracker/internal/model"
	anthropicpkg "github.com/sells-group/closure-tracker/pkg/anthropic"
)

var (
	extractLimit  int
	extractStrict bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Classify unprocessed comments and rebuild the per-bank summary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "extract")
		if err != nil {
			return err
		}
		defer env.Close()

		tracker := newCostTracker()
		opts := extractOptions(env, extractLimit, extractStrict)
		if err := extractStage(ctx, env, newClassifier(tracker, opts.KnownNames), opts, tracker); err != nil {
			return err
		}
		return summarizeStage(ctx, env)
	},
}

func init() {
	extractCmd.Flags().IntVar(&extractLimit, "limit", 0, "max comments to classify this run (0 = all)")
	extractCmd.Flags().BoolVar(&extractStrict, "strict", false, "require the extraction log to line up with the comment log by position")
	rootCmd.AddCommand(extractCmd)
}

func newCostTracker() *cost.Tracker {
	overrides := make(map[string]cost.ModelRate, len(cfg.Pricing.Anthropic))
	for name, p := range cfg.Pricing.Anthropic {
		overrides[name] = cost.ModelRate{
			Input:         p.Input,
			Output:        p.Output,
			CacheWriteMul: p.CacheWriteMul,
			CacheReadMul:  p.CacheReadMul,
		}
	}
	return cost.NewTracker(cost.NewCalculator(cost.WithOverrides(overrides)))
}

// newClassifier builds the Anthropic classifier. vocab goes into the cached
// system prompt.
func newClassifier(tracker *cost.Tracker, vocab []string) *classify.Classifier {
	return classify.New(anthropicpkg.NewClient(cfg.Anthropic.Key), classify.Options{
		Vocabulary:  vocab,
		Model:       cfg.Anthropic.Model,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		MaxAttempts: cfg.Anthropic.MaxAttempts,
		Cost:        tracker,
	})
}

func extractOptions(env *stageEnv, limit int, strict bool) extract.Options {
	opts := extract.Options{Limit: limit, Strict: strict}
	if cfg.Classify.IncludeKnown {
		opts.KnownNames = env.Vocab.Names()
	}
	return opts
}

func extractStage(ctx context.Context, env *stageEnv, cls extract.Classifier, opts extract.Options, tracker *cost.Tracker) error {
	return recordRun(ctx, env.Store, model.StageExtract, func(ctx context.Context) (model.RunResult, error) {
		res, err := runExtract(ctx, env.Backend, env.Files, cls, opts)
		if tracker != nil {
			totals := tracker.Totals()
			res.CostUSD = totals.USD
			zap.L().Info("extract: llm usage",
				zap.Int("calls", totals.Calls),
				zap.Int64("input_tokens", totals.InputTokens),
				zap.Int64("output_tokens", totals.OutputTokens),
				zap.Float64("cost_usd", totals.USD),
			)
		}
		return res, err
	})
}

// runExtract brings the extraction log up to date with the comment log.
func runExtract(ctx context.Context, backend blob.Backend, files config.DataConfig, cls extract.Classifier, opts extract.Options) (model.RunResult, error) {
	agg := extract.New(backend, files.CommentsFile, files.ExtractedFile, cls, opts)
	res, err := agg.Run(ctx)
	if err != nil {
		return model.RunResult{}, err
	}
	return model.RunResult{
		Total:   len(res.Entries),
		New:     res.Classified,
		Written: res.Classified > 0,
	}, nil
}
