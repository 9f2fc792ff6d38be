package main

import (
	"context"

	"cloud.google.com/go/storage"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	gopt "google.golang.org/api/option"

	"github.com/sells-group/closure-tracker/internal/blob"
	"github.com/sells-group/closure-tracker/internal/classify"
	"github.com/sells-group/closure-tracker/internal/config"
	"github.com/sells-group/closure-tracker/internal/model"
	"github.com/sells-group/closure-tracker/internal/store"
)

// stageEnv holds the storage backend and run ledger shared by the stage
// commands.
type stageEnv struct {
	Backend blob.Backend
	Store   store.Store
	Vocab   *classify.Vocabulary
	Files   config.DataConfig

	closers []func() error
}

// Close releases resources held by the environment.
func (e *stageEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Warn("close failed", zap.Error(err))
		}
	}
}

// initEnv validates the config for mode and opens the backend, ledger and
// vocabulary. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*stageEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &stageEnv{Files: cfg.Data}

	backend, closeBackend, err := initBackend(ctx)
	if err != nil {
		return nil, err
	}
	env.Backend = backend
	if closeBackend != nil {
		env.closers = append(env.closers, closeBackend)
	}

	st, err := initStore(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.closers = append(env.closers, st.Close)
	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	env.Store = st

	vocab, err := loadVocabulary()
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Vocab = vocab

	return env, nil
}

// initBackend opens the configured blob backend. The returned close func
// may be nil.
func initBackend(ctx context.Context) (blob.Backend, func() error, error) {
	switch cfg.Storage.Backend {
	case "gcs":
		var opts []gopt.ClientOption
		if cfg.Storage.CredentialsFile != "" {
			opts = append(opts, gopt.WithCredentialsFile(cfg.Storage.CredentialsFile))
		}
		client, err := storage.NewClient(ctx, opts...)
		if err != nil {
			return nil, nil, eris.Wrap(err, "init gcs client")
		}
		zap.L().Debug("using gcs backend",
			zap.String("bucket", cfg.Storage.Bucket),
			zap.String("prefix", cfg.Storage.Prefix),
		)
		return blob.GCS(client, cfg.Storage.Bucket, cfg.Storage.Prefix), client.Close, nil
	case "local", "":
		return blob.Local(cfg.Data.Dir), nil, nil
	default:
		return nil, nil, eris.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}

func initStore(_ context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "runs.db"
		}
		return store.NewSQLite(dsn)
	case "none":
		return store.Noop{}, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func loadVocabulary() (*classify.Vocabulary, error) {
	v, err := classify.LoadVocabulary(cfg.Classify.VocabularyFile, cfg.Classify.MatchThreshold)
	if err != nil {
		return nil, err
	}
	source := cfg.Classify.VocabularyFile
	if source == "" {
		source = "embedded"
	}
	zap.L().Debug("vocabulary loaded", zap.String("source", source), zap.Int("banks", v.Len()))
	return v, nil
}

// recordRun runs fn as one ledger entry for stage.
func recordRun(ctx context.Context, st store.Store, stage model.Stage, fn func(context.Context) (model.RunResult, error)) error {
	run, err := st.CreateRun(ctx, stage)
	if err != nil {
		return eris.Wrapf(err, "%s: create run", stage)
	}

	res, runErr := fn(ctx)
	if runErr != nil {
		if err := st.FailRun(ctx, run.ID, runErr); err != nil {
			zap.L().Warn("record failed run", zap.String("run_id", run.ID), zap.Error(err))
		}
		return runErr
	}

	if err := st.CompleteRun(ctx, run.ID, res); err != nil {
		return eris.Wrapf(err, "%s: complete run", stage)
	}
	zap.L().Info(string(stage)+" complete",
		zap.String("run_id", run.ID),
		zap.Int("total", res.Total),
		zap.Int("new", res.New),
		zap.Bool("written", res.Written),
	)
	return nil
}
