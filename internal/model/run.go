package model

import "time"

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusQueued        RunStatus = "queued"
	RunStatusLoading       RunStatus = "loading"
	RunStatusSegmenting    RunStatus = "segmenting"
	RunStatusExtracting    RunStatus = "extracting"
	RunStatusDeduplicating RunStatus = "deduplicating"
	RunStatusClassifying   RunStatus = "classifying"
	RunStatusReporting     RunStatus = "reporting"
	RunStatusComplete      RunStatus = "complete"
	RunStatusFailed        RunStatus = "failed"
)

// Run represents a single document analysis run.
type Run struct {
	ID        string     `json:"id"`
	Topic     string     `json:"topic"`
	Folder    string     `json:"folder"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run. A run that experienced partial
// item failures still completes; FailedItems records how many.
type RunResult struct {
	DocumentCount   int           `json:"document_count"`
	ChunkCount      int           `json:"chunk_count"`
	RisksFound      int           `json:"risks_found"`
	RisksAfterDedup int           `json:"risks_after_dedup"`
	FailedItems     int           `json:"failed_items"`
	TokenUsage      TokenUsage    `json:"token_usage"`
	Report          string        `json:"report,omitempty"`
	ReportPath      string        `json:"report_path,omitempty"`
	Phases          []PhaseResult `json:"phases,omitempty"`
	Duration        int64         `json:"duration_ms"`
}

// PhaseStatus represents the outcome of a single pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// RunPhase is a persisted phase record.
type RunPhase struct {
	ID        string      `json:"id"`
	RunID     string      `json:"run_id"`
	Name      string      `json:"name"`
	Status    PhaseStatus `json:"status"`
	StartedAt time.Time   `json:"started_at"`
}

// PhaseResult holds per-phase outcome details.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TokenUsage tracks aggregate token consumption for a run.
type TokenUsage struct {
	InputTokens         int     `json:"input_tokens"`
	OutputTokens        int     `json:"output_tokens"`
	CacheCreationTokens int     `json:"cache_creation_tokens"`
	CacheReadTokens     int     `json:"cache_read_tokens"`
	Cost                float64 `json:"cost"`
}

// Add accumulates usage from another TokenUsage.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationTokens += other.CacheCreationTokens
	u.CacheReadTokens += other.CacheReadTokens
	u.Cost += other.Cost
}
