package commentstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/closure-tracker/internal/blob"
	"github.com/sells-group/closure-tracker/internal/model"
)

// pagedSource serves pages keyed by cursor and records every cursor requested.
type pagedSource struct {
	pages   map[string][]model.Comment
	cursors []string
	err     error
}

func (p *pagedSource) FetchPage(_ context.Context, cursor string) ([]model.Comment, error) {
	p.cursors = append(p.cursors, cursor)
	if p.err != nil {
		return nil, p.err
	}
	return p.pages[cursor], nil
}

func c(id string, ts int64) model.Comment {
	return model.Comment{ID: id, Timestamp: model.UnixTime(ts), Text: "comment " + id}
}

func ids(comments []model.Comment) []string {
	out := make([]string, len(comments))
	for i, cm := range comments {
		out[i] = cm.ID
	}
	return out
}

func newTestStore(t *testing.T, existing ...model.Comment) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	if len(existing) > 0 {
		data, err := EncodeComments(existing)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "comments.jsonl"), data, 0o644))
	}
	return New(blob.Local(dir), "comments.jsonl", Options{}), filepath.Join(dir, "comments.jsonl")
}

func TestSync_EmptyStoreScenario(t *testing.T) {
	s, path := newTestStore(t)
	src := &pagedSource{pages: map[string][]model.Comment{
		"": {c("11", 1672439400), c("10", 1672439220)},
	}}

	res, err := s.Sync(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, []string{"10", "11"}, ids(res.Comments))
	assert.Equal(t, model.UnixTime(180), res.Comments[1].Timestamp-res.Comments[0].Timestamp)
	assert.Equal(t, 2, res.New)
	assert.True(t, res.Written)
	assert.Equal(t, []string{"", "10"}, src.cursors, "second fetch uses last id of first page")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		`{"id":"10","timestamp":1672439220,"text":"comment 10"}`+"\n"+
			`{"id":"11","timestamp":1672439400,"text":"comment 11"}`+"\n",
		string(data))
}

func TestSync_BoundaryStop(t *testing.T) {
	s, _ := newTestStore(t, c("3", 3), c("4", 4), c("5", 5))
	src := &pagedSource{pages: map[string][]model.Comment{
		"":  {c("7", 7), c("6", 6)},
		"6": {c("5", 5), c("2", 2)},
		"2": {c("1", 1)},
	}}

	res, err := s.Sync(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "6"}, src.cursors, "must stop after the straddling page")
	assert.Equal(t, 3, res.New)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, []string{"2", "3", "4", "5", "6", "7"}, ids(res.Comments))
}

func TestSync_IdempotentWhenNothingNew(t *testing.T) {
	s, path := newTestStore(t, c("1", 100), c("2", 200))

	// Hand-edited formatting must survive a no-op run byte for byte.
	original := []byte("{\"id\":\"1\",\"timestamp\":100,\"text\":\"comment 1\"}\n\n{\"id\":\"2\", \"timestamp\":200, \"text\":\"comment 2\"}")
	require.NoError(t, os.WriteFile(path, original, 0o644))

	src := &pagedSource{pages: map[string][]model.Comment{"": {c("2", 200), c("1", 100)}}}
	for range 2 {
		res, err := s.Sync(context.Background(), src)
		require.NoError(t, err)
		assert.False(t, res.Written)
		assert.Zero(t, res.New)
		assert.Equal(t, []string{"1", "2"}, ids(res.Comments))
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, data)
}

func TestSync_SecondRunIsByteIdentical(t *testing.T) {
	s, path := newTestStore(t)
	src := &pagedSource{pages: map[string][]model.Comment{"": {c("b", 20), c("a", 10)}}}

	_, err := s.Sync(context.Background(), src)
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	res, err := s.Sync(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, res.Written)

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSync_DedupAcrossPages(t *testing.T) {
	s, _ := newTestStore(t)
	src := &pagedSource{pages: map[string][]model.Comment{
		"":  {c("9", 90), c("8", 80)},
		"8": {c("8", 80), c("7", 70)},
		"7": {},
	}}

	res, err := s.Sync(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "8", "9"}, ids(res.Comments))
	assert.Equal(t, 3, res.New)
}

func TestSync_OrderRederivedFromTimestamp(t *testing.T) {
	s, _ := newTestStore(t, c("1", 100))
	src := &pagedSource{pages: map[string][]model.Comment{
		"":  {c("4", 150), c("5", 400), c("3", 300)},
		"3": {c("1", 100)},
	}}

	res, err := s.Sync(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "4", "3", "5"}, ids(res.Comments))
	for i := 1; i < len(res.Comments); i++ {
		assert.LessOrEqual(t, res.Comments[i-1].Timestamp, res.Comments[i].Timestamp)
	}
}

func TestSync_StableTieBreak(t *testing.T) {
	s, _ := newTestStore(t, c("old", 500))
	src := &pagedSource{pages: map[string][]model.Comment{
		"": {c("new", 500), c("old", 500)},
	}}

	res, err := s.Sync(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "new"}, ids(res.Comments))
}

func TestSync_FetchErrorLeavesLogUntouched(t *testing.T) {
	s, path := newTestStore(t, c("1", 1))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	boom := errors.New("connection refused")
	_, err = s.Sync(context.Background(), &pagedSource{err: boom})
	assert.ErrorIs(t, err, boom)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSync_StalledCursor(t *testing.T) {
	s, _ := newTestStore(t)
	page := []model.Comment{c("2", 2), c("1", 1)}
	src := &pagedSource{pages: map[string][]model.Comment{"": page, "1": page}}

	_, err := s.Sync(context.Background(), src)
	assert.ErrorIs(t, err, ErrCursorStalled)
}

func TestSync_RevisitedPageStalls(t *testing.T) {
	s, path := newTestStore(t)
	// The third page repeats the first under a different cursor, so following
	// its last id would cycle forever.
	src := &pagedSource{pages: map[string][]model.Comment{
		"":  {c("4", 4), c("3", 3)},
		"3": {c("2", 2), c("1", 1)},
		"1": {c("4", 4), c("3", 3)},
	}}

	_, err := s.Sync(context.Background(), src)
	assert.ErrorIs(t, err, ErrCursorStalled)
	assert.Equal(t, []string{"", "3", "1"}, src.cursors)
	assert.NoFileExists(t, path)
}

func TestSync_PageLimitKeepsLogAndNextRunHarvestsAll(t *testing.T) {
	dir := t.TempDir()
	backend := blob.Local(dir)
	upstream := map[string][]model.Comment{
		"":  {c("4", 4), c("3", 3)},
		"3": {c("2", 2), c("1", 1)},
	}

	capped := New(backend, "comments.jsonl", Options{MaxPages: 1})
	_, err := capped.Sync(context.Background(), &pagedSource{pages: upstream})
	assert.ErrorIs(t, err, ErrPageLimit)
	assert.NoFileExists(t, filepath.Join(dir, "comments.jsonl"))

	full := New(backend, "comments.jsonl", Options{})
	res, err := full.Sync(context.Background(), &pagedSource{pages: upstream})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(res.Comments))
}

func TestSync_PageLimitNotHitWhenCaughtUp(t *testing.T) {
	s, _ := newTestStore(t, c("2", 2), c("1", 1))
	s.opts.MaxPages = 1
	src := &pagedSource{pages: map[string][]model.Comment{
		"": {c("4", 4), c("3", 3), c("2", 2)},
	}}

	res, err := s.Sync(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(res.Comments))
}

func TestSync_PageLimitNotHitWhenExhausted(t *testing.T) {
	s, _ := newTestStore(t)
	s.opts.MaxPages = 2
	src := &pagedSource{pages: map[string][]model.Comment{
		"": {c("2", 2), c("1", 1)},
	}}

	res, err := s.Sync(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, []string{"1", "2"}, ids(res.Comments))
}

func TestLoad_MissingIsEmpty(t *testing.T) {
	s, _ := newTestStore(t)
	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoad_AcceptsISOTimestamps(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"1","timestamp":"2022-12-30T22:27:00Z","text":"x"}`+"\n"), 0o644))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.UnixTime(1672439220), got[0].Timestamp)
}

func TestMerge(t *testing.T) {
	existing := []model.Comment{c("a", 1), c("b", 3)}
	fresh := []model.Comment{c("c", 2), c("d", 3)}

	got := Merge(existing, fresh)
	assert.Equal(t, []string{"a", "c", "b", "d"}, ids(got))
	assert.Equal(t, []string{"a", "b"}, ids(existing), "inputs are not modified")
}
