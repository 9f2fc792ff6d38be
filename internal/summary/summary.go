// Package summary groups extraction results by bank and renders them for the
// frontend, the terminal and spreadsheets.
package summary

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/closure-tracker/internal/blob"
	"github.com/sells-group/closure-tracker/internal/model"
)

// Build flattens every attempt in entries and groups them by bank. canon maps
// a returned bank name onto its grouping key; nil keeps names as returned.
// Each bank's attempts are sorted by timestamp, ties kept in log order.
func Build(entries []model.ExtractionEntry, canon func(string) string) model.BankSummary {
	s := make(model.BankSummary)
	for _, e := range entries {
		for _, r := range e.Records() {
			bank := r.BankName
			if canon != nil {
				bank = canon(bank)
			}
			if bank == "" {
				continue
			}
			s[bank] = append(s[bank], model.BankAttempt{
				CommentID: r.CommentID,
				Method:    r.Method,
				Success:   r.Success,
				Timestamp: r.Timestamp,
			})
		}
	}
	for _, attempts := range s {
		slices.SortStableFunc(attempts, func(a, b model.BankAttempt) int {
			return cmp.Compare(a.Timestamp, b.Timestamp)
		})
	}
	return s
}

// Encode renders the summary as indented JSON with banks in sorted order and
// a trailing newline.
func Encode(s model.BankSummary) ([]byte, error) {
	if s == nil {
		s = model.BankSummary{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, eris.Wrap(err, "summary: encode")
	}
	return buf.Bytes(), nil
}

// Decode parses a summary document.
func Decode(data []byte) (model.BankSummary, error) {
	var s model.BankSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "summary: decode")
	}
	if s == nil {
		s = model.BankSummary{}
	}
	return s, nil
}

// Load reads the summary from backend. A missing summary is empty.
func Load(ctx context.Context, backend blob.Backend, name string) (model.BankSummary, error) {
	data, err := backend.Read(ctx, name)
	if errors.Is(err, blob.ErrNotExist) {
		return model.BankSummary{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "summary: load")
	}
	return Decode(data)
}

// Write stores the summary unless the stored copy is already identical. It
// reports whether a write happened.
func Write(ctx context.Context, backend blob.Backend, name string, s model.BankSummary) (bool, error) {
	data, err := Encode(s)
	if err != nil {
		return false, err
	}

	current, err := backend.Read(ctx, name)
	switch {
	case err == nil && bytes.Equal(current, data):
		zap.L().Info("summary: unchanged, skipping write", zap.String("name", name))
		return false, nil
	case err != nil && !errors.Is(err, blob.ErrNotExist):
		return false, eris.Wrap(err, "summary: read current")
	}

	if err := backend.Write(ctx, name, data); err != nil {
		return false, eris.Wrap(err, "summary: write")
	}
	zap.L().Info("summary: written",
		zap.String("name", name),
		zap.Int("banks", len(s)),
	)
	return true, nil
}

// WriteMetadata records when the summary last changed.
func WriteMetadata(ctx context.Context, backend blob.Backend, name string, now time.Time) error {
	data, err := json.Marshal(model.Metadata{LastUpdated: now.UnixMilli()})
	if err != nil {
		return eris.Wrap(err, "summary: encode metadata")
	}
	return eris.Wrap(backend.Write(ctx, name, data), "summary: write metadata")
}

// LoadMetadata reads the metadata sidecar. A missing sidecar wraps
// blob.ErrNotExist.
func LoadMetadata(ctx context.Context, backend blob.Backend, name string) (*model.Metadata, error) {
	data, err := backend.Read(ctx, name)
	if err != nil {
		return nil, eris.Wrap(err, "summary: read metadata")
	}
	var m model.Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "summary: decode metadata")
	}
	return &m, nil
}
