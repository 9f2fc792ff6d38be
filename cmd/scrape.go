package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/closure-tracker/internal/blob"
	"github.com/sells-group/closure-tracker/internal/commentstore"
	"github.com/sells-group/closure-tracker/internal/model"
	"github.com/sells-group/closure-tracker/internal/source"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Fetch new comments and merge them into the comment log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "scrape")
		if err != nil {
			return err
		}
		defer env.Close()

		return scrapeStage(ctx, env)
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

func scrapeStage(ctx context.Context, env *stageEnv) error {
	return recordRun(ctx, env.Store, model.StageScrape, func(ctx context.Context) (model.RunResult, error) {
		client, err := newSourceClient(ctx)
		if err != nil {
			return model.RunResult{}, err
		}
		return runScrape(ctx, env.Backend, env.Files.CommentsFile, client, cfg.Source.MaxPages)
	})
}

func newSourceClient(ctx context.Context) (*source.Client, error) {
	loc, err := cfg.Source.Location()
	if err != nil {
		return nil, err
	}
	return source.NewClient(ctx, source.Options{
		Endpoint:    cfg.Source.Endpoint,
		PostURL:     cfg.Source.PostURL,
		PostID:      cfg.Source.PostID,
		UserAgent:   cfg.Source.UserAgent,
		Location:    loc,
		Timeout:     cfg.Source.Timeout(),
		RatePerSec:  cfg.Source.RatePerSec,
		MaxAttempts: cfg.Source.MaxAttempts,
	})
}

// runScrape syncs the comment log at name from fetcher.
func runScrape(ctx context.Context, backend blob.Backend, name string, fetcher commentstore.PageFetcher, maxPages int) (model.RunResult, error) {
	st := commentstore.New(backend, name, commentstore.Options{MaxPages: maxPages})
	res, err := st.Sync(ctx, fetcher)
	if err != nil {
		return model.RunResult{}, err
	}

	zap.L().Info("scrape: comment log updated",
		zap.Int("total", len(res.Comments)),
		zap.Int("new", res.New),
		zap.Int("pages", res.Pages),
	)
	return model.RunResult{
		Total:   len(res.Comments),
		New:     res.New,
		Pages:   res.Pages,
		Written: res.Written,
	}, nil
}
