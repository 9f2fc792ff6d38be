package commentstore

import (
	"bufio"
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/closure-tracker/internal/model"
)

// EncodeComments renders comments as JSON lines: one compact object per line,
// HTML characters left unescaped, trailing newline.
func EncodeComments(comments []model.Comment) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range comments {
		if err := enc.Encode(&comments[i]); err != nil {
			return nil, eris.Wrapf(err, "commentstore: encode comment %s", comments[i].ID)
		}
	}
	return buf.Bytes(), nil
}

// DecodeComments parses JSON lines. Blank lines are skipped. An id seen on
// two lines is ErrDuplicateComment.
func DecodeComments(data []byte) ([]model.Comment, error) {
	var comments []model.Comment
	lineOf := make(map[string]int)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var c model.Comment
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, eris.Wrapf(err, "commentstore: decode line %d", line)
		}
		if c.ID == "" {
			return nil, eris.Errorf("commentstore: line %d has no id", line)
		}
		if prev, ok := lineOf[c.ID]; ok {
			return nil, eris.Wrapf(ErrDuplicateComment, "commentstore: comment %s on lines %d and %d", c.ID, prev, line)
		}
		lineOf[c.ID] = line
		comments = append(comments, c)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "commentstore: scan")
	}
	return comments, nil
}
