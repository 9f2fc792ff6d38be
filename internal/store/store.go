// Package store records each stage invocation in a run ledger.
package store

import (
	"context"
	"time"

	"github.com/sells-group/closure-tracker/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Stage  model.Stage     `json:"stage,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// StageStats summarizes the ledger for one stage.
type StageStats struct {
	Stage       model.Stage
	Runs        int
	Completed   int
	Failed      int
	NewRecords  int
	LastSuccess *time.Time
}

// Store defines the run ledger.
type Store interface {
	CreateRun(ctx context.Context, stage model.Stage) (*model.StageRun, error)
	CompleteRun(ctx context.Context, runID string, result model.RunResult) error
	FailRun(ctx context.Context, runID string, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.StageRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.StageRun, error)
	Stats(ctx context.Context) ([]StageStats, error)

	Migrate(ctx context.Context) error
	Close() error
}
