package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/closure-tracker/internal/model"
)

// Noop is a Store that records nothing. It backs the "none" driver.
type Noop struct{}

var _ Store = Noop{}

func (Noop) CreateRun(_ context.Context, stage model.Stage) (*model.StageRun, error) {
	now := time.Now().UTC()
	return &model.StageRun{
		ID:        uuid.New().String(),
		Stage:     stage,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (Noop) CompleteRun(context.Context, string, model.RunResult) error { return nil }

func (Noop) FailRun(context.Context, string, error) error { return nil }

func (Noop) GetRun(_ context.Context, runID string) (*model.StageRun, error) {
	return nil, ErrRunNotFound
}

func (Noop) ListRuns(context.Context, RunFilter) ([]model.StageRun, error) { return nil, nil }

func (Noop) Stats(context.Context) ([]StageStats, error) { return nil, nil }

func (Noop) Migrate(context.Context) error { return nil }

func (Noop) Close() error { return nil }
