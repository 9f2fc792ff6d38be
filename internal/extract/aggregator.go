// Package extract runs the classifier over comments that have not been
// processed yet and appends the results to the extraction log.
package extract

import (
	"context"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/closure-tracker/internal/blob"
	"github.com/sells-group/closure-tracker/internal/commentstore"
	"github.com/sells-group/closure-tracker/internal/model"
)

var (
	// ErrDuplicateRecord means the extraction log has two lines for one comment.
	ErrDuplicateRecord = eris.New("extract: duplicate commentId in extraction log")
	// ErrOrderMismatch means the extraction log is not a positional prefix of
	// the comment log.
	ErrOrderMismatch = eris.New("extract: extraction log out of step with comment log")
)

// Classifier turns comment text into closure attempts. learned lists bank
// names seen in earlier results that are not among Options.KnownNames.
type Classifier interface {
	Classify(ctx context.Context, text string, learned []string) ([]model.ClosureAttempt, error)
}

// Options tunes a run.
type Options struct {
	// Limit caps classifier calls per run. Zero means no cap.
	Limit int
	// Strict requires line i of the extraction log to belong to comment i.
	Strict bool
	// KnownNames are the bank names the classifier already carries. Only
	// names outside this set are passed to Classify.
	KnownNames []string
}

// Aggregator keeps the extraction log in step with the comment log.
type Aggregator struct {
	backend       blob.Backend
	comments      *commentstore.Store
	extractedName string
	cls           Classifier
	opts          Options
}

// Result reports a run.
type Result struct {
	Entries    []model.ExtractionEntry // full extraction log after the run
	Classified int                     // classifier calls made
	Skipped    int                     // unprocessed comments left by Limit
}

// New returns an Aggregator over the named logs on backend.
func New(backend blob.Backend, commentsName, extractedName string, cls Classifier, opts Options) *Aggregator {
	return &Aggregator{
		backend:       backend,
		comments:      commentstore.New(backend, commentsName, commentstore.Options{}),
		extractedName: extractedName,
		cls:           cls,
		opts:          opts,
	}
}

// Run classifies every comment without an extraction line, in comment log
// order, appending each result before moving on. Lines written before a
// failure stay in the log.
func (a *Aggregator) Run(ctx context.Context) (*Result, error) {
	comments, err := a.comments.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "extract: load comments")
	}
	entries, err := LoadEntries(ctx, a.backend, a.extractedName)
	if err != nil {
		return nil, err
	}

	processed, err := indexEntries(entries)
	if err != nil {
		return nil, err
	}
	if err := a.checkOrder(comments, entries); err != nil {
		return nil, err
	}
	logOrphans(comments, entries)

	known := newNameSet(a.opts.KnownNames)
	seeded := len(known.names)
	for _, e := range entries {
		for _, att := range e.ExtractedData.ClosureAttempts {
			known.add(att.BankName)
		}
	}

	zap.L().Info("extract: starting",
		zap.Int("comments", len(comments)),
		zap.Int("processed", len(processed)),
		zap.Int("known_banks", seeded),
		zap.Int("learned_banks", len(known.names)-seeded),
	)

	res := &Result{}
	for i, c := range comments {
		if _, ok := processed[c.ID]; ok {
			continue
		}
		if a.opts.Limit > 0 && res.Classified >= a.opts.Limit {
			res.Skipped = countUnprocessed(comments[i:], processed)
			zap.L().Info("extract: limit reached",
				zap.Int("limit", a.opts.Limit),
				zap.Int("remaining", res.Skipped),
			)
			break
		}

		attempts, err := a.cls.Classify(ctx, c.Text, known.learned(seeded))
		if err != nil {
			return nil, eris.Wrapf(err, "extract: classify comment %s", c.ID)
		}
		if attempts == nil {
			attempts = []model.ClosureAttempt{}
		}

		entry := model.ExtractionEntry{
			CommentID:     c.ID,
			Timestamp:     c.Timestamp,
			ExtractedData: model.ClosureData{ClosureAttempts: attempts},
		}
		line, err := EncodeEntry(entry)
		if err != nil {
			return nil, err
		}
		if err := a.backend.Append(ctx, a.extractedName, line); err != nil {
			return nil, eris.Wrapf(err, "extract: append entry %s", c.ID)
		}

		entries = append(entries, entry)
		processed[c.ID] = len(entries) - 1
		res.Classified++
		for _, att := range attempts {
			known.add(att.BankName)
		}

		zap.L().Info("extract: comment classified",
			zap.String("comment_id", c.ID),
			zap.Int("attempts", len(attempts)),
		)
	}

	res.Entries = entries
	zap.L().Info("extract: done",
		zap.Int("classified", res.Classified),
		zap.Int("skipped", res.Skipped),
		zap.Int("entries", len(entries)),
	)
	return res, nil
}

func indexEntries(entries []model.ExtractionEntry) (map[string]int, error) {
	idx := make(map[string]int, len(entries))
	for i, e := range entries {
		if prev, ok := idx[e.CommentID]; ok {
			return nil, eris.Wrapf(ErrDuplicateRecord, "extract: comment %s on lines %d and %d", e.CommentID, prev+1, i+1)
		}
		idx[e.CommentID] = i
	}
	return idx, nil
}

// checkOrder compares the extraction log against the comment log position by
// position. In strict mode any divergence is fatal; otherwise it is logged.
func (a *Aggregator) checkOrder(comments []model.Comment, entries []model.ExtractionEntry) error {
	for i, e := range entries {
		var want string
		if i < len(comments) {
			want = comments[i].ID
		}
		if want == e.CommentID {
			continue
		}
		if a.opts.Strict {
			return eris.Wrapf(ErrOrderMismatch, "extract: line %d is comment %s, expected %q", i+1, e.CommentID, want)
		}
		zap.L().Warn("extract: extraction log order diverges from comment log",
			zap.Int("line", i+1),
			zap.String("comment_id", e.CommentID),
			zap.String("expected", want),
		)
		return nil
	}
	return nil
}

func logOrphans(comments []model.Comment, entries []model.ExtractionEntry) {
	ids := make(map[string]struct{}, len(comments))
	for _, c := range comments {
		ids[c.ID] = struct{}{}
	}
	for _, e := range entries {
		if _, ok := ids[e.CommentID]; !ok {
			zap.L().Warn("extract: entry references unknown comment", zap.String("comment_id", e.CommentID))
		}
	}
}

func countUnprocessed(comments []model.Comment, processed map[string]int) int {
	n := 0
	for _, c := range comments {
		if _, ok := processed[c.ID]; !ok {
			n++
		}
	}
	return n
}

// nameSet is an insertion-ordered set of bank names compared without case.
type nameSet struct {
	names []string
	seen  map[string]struct{}
}

func newNameSet(seed []string) *nameSet {
	s := &nameSet{seen: make(map[string]struct{}, len(seed))}
	for _, n := range seed {
		s.add(n)
	}
	return s
}

// learned returns the names added after the first seeded.
func (s *nameSet) learned(seeded int) []string {
	if len(s.names) == seeded {
		return nil
	}
	return slices.Clone(s.names[seeded:])
}

func (s *nameSet) add(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	key := strings.ToLower(name)
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.names = append(s.names, name)
}
