package model

import "slices"

// BankAttempt is one entry in a bank's summary list.
type BankAttempt struct {
	CommentID string   `json:"comment_id"`
	Method    string   `json:"method"`
	Success   bool     `json:"success"`
	Timestamp UnixTime `json:"timestamp"`
}

// BankSummary maps bank name to its attempts, oldest first.
type BankSummary map[string][]BankAttempt

// Banks returns the bank names in sorted order.
func (s BankSummary) Banks() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Metadata is the sidecar file the frontend reads for freshness.
type Metadata struct {
	LastUpdated int64 `json:"lastUpdated"` // unix milliseconds
}
