package model

import "time"

// Stage names a batch stage recorded in the run ledger.
type Stage string

const (
	StageScrape    Stage = "scrape"
	StageExtract   Stage = "extract"
	StageSummarize Stage = "summarize"
)

// RunStatus represents the current state of a stage run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// StageRun is one invocation of a stage.
type StageRun struct {
	ID        string     `json:"id"`
	Stage     Stage      `json:"stage"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the counters a stage reports on success.
type RunResult struct {
	Total   int     `json:"total"`              // records in the output log
	New     int     `json:"new"`                // records added this run
	Pages   int     `json:"pages"`              // pages fetched (scrape only)
	Written bool    `json:"written"`            // whether any file was rewritten
	CostUSD float64 `json:"cost_usd,omitempty"` // LLM spend (extract only)
}
