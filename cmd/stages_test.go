package main

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/closure-tracker/internal/blob"
	"github.com/sells-group/closure-tracker/internal/config"
	"github.com/sells-group/closure-tracker/internal/extract"
	"github.com/sells-group/closure-tracker/internal/model"
	"github.com/sells-group/closure-tracker/internal/store"
	"github.com/sells-group/closure-tracker/internal/summary"
)

var testFiles = config.DataConfig{
	CommentsFile:  "comments.jsonl",
	ExtractedFile: "extracted.jsonl",
	SummaryFile:   "by_bank.json",
	MetadataFile:  "metadata.json",
}

type pagedFetcher struct {
	pages map[string][]model.Comment
}

func (f *pagedFetcher) FetchPage(_ context.Context, cursor string) ([]model.Comment, error) {
	return f.pages[cursor], nil
}

type keywordClassifier struct {
	calls int
}

func (c *keywordClassifier) Classify(_ context.Context, text string, _ []string) ([]model.ClosureAttempt, error) {
	c.calls++
	if text == "" {
		return nil, nil
	}
	return []model.ClosureAttempt{{Success: true, BankName: text, Method: model.MethodPhone}}, nil
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestPipeline_EndToEnd(t *testing.T) {
	ctx := context.Background()
	backend := blob.Local(t.TempDir())

	fetcher := &pagedFetcher{pages: map[string][]model.Comment{
		"":  {{ID: "3", Timestamp: 300, Text: "Chase"}, {ID: "2", Timestamp: 200, Text: ""}},
		"2": {{ID: "1", Timestamp: 100, Text: "Ally"}},
	}}

	res, err := runScrape(ctx, backend, testFiles.CommentsFile, fetcher, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.New)
	assert.True(t, res.Written)

	cls := &keywordClassifier{}
	res, err = runExtract(ctx, backend, testFiles, cls, extract.Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, cls.calls)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.New)

	now := time.UnixMilli(1700000000000)
	res, err = runSummarize(ctx, backend, testFiles, func(s string) string { return s }, now)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.True(t, res.Written)

	s, err := summary.Load(ctx, backend, testFiles.SummaryFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ally", "Chase"}, s.Banks())
	assert.Equal(t, "1", s["Ally"][0].CommentID)

	meta, err := summary.LoadMetadata(ctx, backend, testFiles.MetadataFile)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), meta.LastUpdated)

	// A second pass with nothing new changes nothing.
	res, err = runScrape(ctx, backend, testFiles.CommentsFile, fetcher, 0)
	require.NoError(t, err)
	assert.Zero(t, res.New)
	assert.False(t, res.Written)

	res, err = runExtract(ctx, backend, testFiles, cls, extract.Options{})
	require.NoError(t, err)
	assert.Zero(t, res.New)
	assert.Equal(t, 3, cls.calls)

	res, err = runSummarize(ctx, backend, testFiles, func(s string) string { return s }, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, res.Written)

	meta, err = summary.LoadMetadata(ctx, backend, testFiles.MetadataFile)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), meta.LastUpdated, "metadata untouched when summary unchanged")
}

func TestRunSummarize_EmptyLog(t *testing.T) {
	ctx := context.Background()
	backend := blob.Local(t.TempDir())

	res, err := runSummarize(ctx, backend, testFiles, func(s string) string { return s }, time.Now())
	require.NoError(t, err)
	assert.Zero(t, res.Total)

	data, err := backend.Read(ctx, testFiles.SummaryFile)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Empty(t, got)
}

func TestRecordRun_Complete(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	err := recordRun(ctx, st, model.StageScrape, func(context.Context) (model.RunResult, error) {
		return model.RunResult{Total: 10, New: 2, Pages: 1, Written: true}, nil
	})
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	require.NotNil(t, runs[0].Result)
	assert.Equal(t, 2, runs[0].Result.New)
}

func TestRecordRun_Failed(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	boom := errors.New("source: http 503")

	err := recordRun(ctx, st, model.StageExtract, func(context.Context) (model.RunResult, error) {
		return model.RunResult{}, boom
	})
	assert.ErrorIs(t, err, boom)

	runs, err := st.ListRuns(ctx, store.RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.StageExtract, runs[0].Stage)
	assert.Equal(t, "source: http 503", runs[0].Error)
}
