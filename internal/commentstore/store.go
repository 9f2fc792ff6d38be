// Package commentstore keeps the chronological comment log in sync with the
// newest-first comment source.
package commentstore

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/closure-tracker/internal/blob"
	"github.com/sells-group/closure-tracker/internal/model"
)

var (
	// ErrCursorStalled means the source kept returning the same page, or a
	// page made only of comments already fetched this run.
	ErrCursorStalled = eris.New("commentstore: pagination cursor did not advance")
	// ErrDuplicateComment means the stored log holds the same id twice.
	ErrDuplicateComment = eris.New("commentstore: duplicate comment id in log")
	// ErrPageLimit means MaxPages was reached before the fetch caught up with
	// the stored log or exhausted the source. Nothing is written.
	ErrPageLimit = eris.New("commentstore: page limit reached before catching up")
)

// PageFetcher returns one page of comments, newest first. An empty cursor
// requests the newest page; otherwise cursor is the last id of the previous
// page. An empty page means the source is exhausted.
type PageFetcher interface {
	FetchPage(ctx context.Context, cursor string) ([]model.Comment, error)
}

// Options tunes Sync.
type Options struct {
	// MaxPages caps pages fetched per sync. Zero means no cap. A sync that
	// hits the cap fails with ErrPageLimit and leaves the log untouched.
	MaxPages int
}

// Store is the persisted comment log, oldest first.
type Store struct {
	backend blob.Backend
	name    string
	opts    Options
}

// New returns a Store reading and writing object name on backend.
func New(backend blob.Backend, name string, opts Options) *Store {
	return &Store{backend: backend, name: name, opts: opts}
}

// SyncResult reports the outcome of Sync.
type SyncResult struct {
	Comments []model.Comment // full log after the merge, oldest first
	New      int             // comments added this run
	Pages    int             // pages fetched
	Written  bool            // whether the log was rewritten
}

// Load reads the persisted log. A missing log is empty.
func (s *Store) Load(ctx context.Context) ([]model.Comment, error) {
	data, err := s.backend.Read(ctx, s.name)
	if errors.Is(err, blob.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "commentstore: load")
	}
	return DecodeComments(data)
}

// Sync pulls pages until it reaches comments already in the log or the
// source runs dry, merges the new comments in by timestamp and rewrites the
// log. The log is left untouched when nothing new was found.
func (s *Store) Sync(ctx context.Context, f PageFetcher) (*SyncResult, error) {
	existing, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	zap.L().Info("commentstore: loaded log",
		zap.String("name", s.name),
		zap.Int("comments", len(existing)),
	)

	seen := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		seen[c.ID] = struct{}{}
	}

	var (
		fresh    []model.Comment
		freshIDs = make(map[string]struct{})
		cursor   string
		pages    int
	)
	for {
		if s.opts.MaxPages > 0 && pages >= s.opts.MaxPages {
			return nil, eris.Wrapf(ErrPageLimit, "commentstore: %d pages fetched, %d new comments discarded", pages, len(fresh))
		}

		batch, err := f.FetchPage(ctx, cursor)
		if err != nil {
			return nil, eris.Wrapf(err, "commentstore: fetch page %d", pages+1)
		}
		pages++

		if len(batch) == 0 {
			zap.L().Info("commentstore: source exhausted", zap.Int("pages", pages))
			break
		}

		caughtUp := false
		added := 0
		for _, c := range batch {
			if _, ok := seen[c.ID]; ok {
				caughtUp = true
				continue
			}
			if _, ok := freshIDs[c.ID]; ok {
				zap.L().Debug("commentstore: duplicate id across pages", zap.String("id", c.ID))
				continue
			}
			freshIDs[c.ID] = struct{}{}
			fresh = append(fresh, c)
			added++
		}

		zap.L().Info("commentstore: fetched page",
			zap.Int("page", pages),
			zap.Int("batch", len(batch)),
			zap.Int("new", added),
		)

		if caughtUp {
			zap.L().Info("commentstore: reached stored comments", zap.Int("page", pages))
			break
		}

		last := batch[len(batch)-1].ID
		if last == cursor || added == 0 {
			return nil, eris.Wrapf(ErrCursorStalled, "commentstore: page %d after %q", pages, cursor)
		}
		cursor = last
	}

	res := &SyncResult{New: len(fresh), Pages: pages}
	if len(fresh) == 0 {
		res.Comments = existing
		zap.L().Info("commentstore: no new comments", zap.Int("total", len(existing)))
		return res, nil
	}

	res.Comments = Merge(existing, fresh)
	data, err := EncodeComments(res.Comments)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Write(ctx, s.name, data); err != nil {
		return nil, eris.Wrap(err, "commentstore: write log")
	}
	res.Written = true

	zap.L().Info("commentstore: log updated",
		zap.Int("total", len(res.Comments)),
		zap.Int("new", res.New),
	)
	return res, nil
}

// Merge returns existing and fresh combined and stably sorted by timestamp.
// On equal timestamps existing comments come first.
func Merge(existing, fresh []model.Comment) []model.Comment {
	merged := make([]model.Comment, 0, len(existing)+len(fresh))
	merged = append(merged, existing...)
	merged = append(merged, fresh...)
	slices.SortStableFunc(merged, func(a, b model.Comment) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return merged
}
