package extract

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/closure-tracker/internal/blob"
	"github.com/sells-group/closure-tracker/internal/model"
)

// EncodeEntry renders one extraction log line including the trailing newline.
func EncodeEntry(e model.ExtractionEntry) ([]byte, error) {
	if e.ExtractedData.ClosureAttempts == nil {
		e.ExtractedData.ClosureAttempts = []model.ClosureAttempt{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, eris.Wrapf(err, "extract: encode entry %s", e.CommentID)
	}
	return buf.Bytes(), nil
}

// DecodeEntries parses the extraction log. Blank lines are skipped.
func DecodeEntries(data []byte) ([]model.ExtractionEntry, error) {
	var entries []model.ExtractionEntry
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var e model.ExtractionEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, eris.Wrapf(err, "extract: decode line %d", line)
		}
		if e.CommentID == "" {
			return nil, eris.Errorf("extract: line %d has no commentId", line)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "extract: scan")
	}
	return entries, nil
}

// LoadEntries reads the extraction log from backend. A missing log is empty.
func LoadEntries(ctx context.Context, backend blob.Backend, name string) ([]model.ExtractionEntry, error) {
	data, err := backend.Read(ctx, name)
	if errors.Is(err, blob.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "extract: load log")
	}
	return DecodeEntries(data)
}
