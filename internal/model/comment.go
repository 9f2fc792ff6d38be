package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Comment is one top-level reply on the source post.
type Comment struct {
	ID        string   `json:"id"`
	Timestamp UnixTime `json:"timestamp"`
	Text      string   `json:"text"`
}

// UnixTime is seconds since the epoch, UTC. It is always written as a JSON
// integer but older logs may carry an ISO-8601 string instead.
type UnixTime int64

// isoLayouts are tried in order when a timestamp arrives as a string.
// Layouts without a zone are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// UnmarshalJSON accepts an integer, a numeric string, or an ISO-8601 string.
func (u *UnixTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return eris.New("model: timestamp is empty")
	}

	if data[0] != '"' {
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			// Tolerate float encodings like 1672439220.0.
			f, ferr := strconv.ParseFloat(string(data), 64)
			if ferr != nil {
				return eris.Wrapf(err, "model: parse timestamp %s", data)
			}
			n = int64(f)
		}
		*u = UnixTime(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.Wrap(err, "model: decode timestamp string")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*u = UnixTime(n)
		return nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*u = UnixTime(t.Unix())
			return nil
		}
	}
	return eris.Errorf("model: unrecognized timestamp %q", s)
}

// Time returns the timestamp as a UTC time.
func (u UnixTime) Time() time.Time {
	return time.Unix(int64(u), 0).UTC()
}
