package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Recommended closure channels. The set is open: classifier output outside
// it is stored verbatim.
const (
	MethodPhone         = "phone"
	MethodChat          = "chat"
	MethodInBranch      = "in-branch"
	MethodSecureMessage = "secure-message"
	MethodOnPlatform    = "on-platform"
	MethodZeroBalance   = "0-balance"
	MethodUnknown       = "unknown"
)

// RecommendedMethods returns the suggested closure channels in prompt order.
func RecommendedMethods() []string {
	return []string{
		MethodPhone,
		MethodChat,
		MethodInBranch,
		MethodSecureMessage,
		MethodOnPlatform,
		MethodZeroBalance,
		MethodUnknown,
	}
}

// ClosureAttempt is a single account closure attempt reported in a comment.
type ClosureAttempt struct {
	Success  bool   `json:"success"`
	BankName string `json:"bank_name"`
	Method   string `json:"method"`
}

// ClosureData is the classifier payload stored for one comment.
type ClosureData struct {
	ClosureAttempts []ClosureAttempt `json:"closure_attempts"`
}

// ExtractionEntry is one line of the extraction log: the classifier result
// for exactly one comment. A comment with no attempts still gets an entry so
// it is never classified twice.
type ExtractionEntry struct {
	CommentID     string      `json:"commentId"`
	Timestamp     UnixTime    `json:"timestamp"`
	ExtractedData ClosureData `json:"extracted_data"`
}

// UnmarshalJSON also accepts the legacy "date" field in place of "timestamp".
// An entry with neither is an error.
func (e *ExtractionEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		CommentID     string      `json:"commentId"`
		Timestamp     *UnixTime   `json:"timestamp"`
		Date          *UnixTime   `json:"date"`
		ExtractedData ClosureData `json:"extracted_data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: decode extraction entry")
	}
	e.CommentID = raw.CommentID
	e.ExtractedData = raw.ExtractedData
	switch {
	case raw.Timestamp != nil:
		e.Timestamp = *raw.Timestamp
	case raw.Date != nil:
		e.Timestamp = *raw.Date
	default:
		return eris.Errorf("model: extraction entry %q has no timestamp", raw.CommentID)
	}
	return nil
}

// ExtractedRecord is one closure attempt joined with its source comment.
type ExtractedRecord struct {
	CommentID string
	Timestamp UnixTime
	BankName  string
	Method    string
	Success   bool
}

// Records flattens the entry into one record per attempt.
func (e ExtractionEntry) Records() []ExtractedRecord {
	out := make([]ExtractedRecord, 0, len(e.ExtractedData.ClosureAttempts))
	for _, a := range e.ExtractedData.ClosureAttempts {
		out = append(out, ExtractedRecord{
			CommentID: e.CommentID,
			Timestamp: e.Timestamp,
			BankName:  a.BankName,
			Method:    a.Method,
			Success:   a.Success,
		})
	}
	return out
}
