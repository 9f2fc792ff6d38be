package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/closure-tracker/internal/model"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = eris.New("store: run not found")

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// The parent directory of a file path is created when missing.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if err := ensureDir(dsn); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func ensureDir(dsn string) error {
	if dsn == "" || dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	return eris.Wrapf(os.MkdirAll(dir, 0o755), "sqlite: create dir %s", dir)
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS stage_runs (
	id         TEXT PRIMARY KEY,
	stage      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stage_runs_stage ON stage_runs(stage);
CREATE INDEX IF NOT EXISTS idx_stage_runs_created_at ON stage_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, stage model.Stage) (*model.StageRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_runs (id, stage, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(stage), string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.StageRun{
		ID:        id,
		Stage:     stage,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE stage_runs SET status = ?, result = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(resultJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE stage_runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.StageRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, stage, status, result, error, created_at, updated_at FROM stage_runs WHERE id = ?`, runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "sqlite: get run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.StageRun, error) {
	query := `SELECT id, stage, status, result, error, created_at, updated_at FROM stage_runs`
	var (
		where []string
		args  []any
	)
	if filter.Stage != "" {
		where = append(where, "stage = ?")
		args = append(args, string(filter.Stage))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.StageRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) Stats(ctx context.Context) ([]StageStats, error) {
	runs, err := s.ListRuns(ctx, RunFilter{Limit: 1 << 30})
	if err != nil {
		return nil, err
	}
	return summarize(runs), nil
}

// summarize folds runs (newest first) into per-stage stats ordered by stage.
func summarize(runs []model.StageRun) []StageStats {
	byStage := map[model.Stage]*StageStats{}
	var order []model.Stage
	for _, r := range runs {
		st, ok := byStage[r.Stage]
		if !ok {
			st = &StageStats{Stage: r.Stage}
			byStage[r.Stage] = st
			order = append(order, r.Stage)
		}
		st.Runs++
		switch r.Status {
		case model.RunStatusComplete:
			st.Completed++
			if r.Result != nil {
				st.NewRecords += r.Result.New
			}
			if st.LastSuccess == nil || r.UpdatedAt.After(*st.LastSuccess) {
				t := r.UpdatedAt
				st.LastSuccess = &t
			}
		case model.RunStatusFailed:
			st.Failed++
		}
	}

	out := make([]StageStats, 0, len(order))
	for _, stage := range []model.Stage{model.StageScrape, model.StageExtract, model.StageSummarize} {
		if st, ok := byStage[stage]; ok {
			out = append(out, *st)
			delete(byStage, stage)
		}
	}
	for _, stage := range order {
		if st, ok := byStage[stage]; ok {
			out = append(out, *st)
		}
	}
	return out
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrRunNotFound, "run %s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.StageRun, error) {
	var (
		r          model.StageRun
		stage      string
		status     string
		resultJSON sql.NullString
		errMsg     sql.NullString
	)
	if err := row.Scan(&r.ID, &stage, &status, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Stage = model.Stage(stage)
	r.Status = model.RunStatus(status)
	r.Error = errMsg.String
	if resultJSON.Valid && resultJSON.String != "" {
		var res model.RunResult
		if err := json.Unmarshal([]byte(resultJSON.String), &res); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
		r.Result = &res
	}
	return &r, nil
}
