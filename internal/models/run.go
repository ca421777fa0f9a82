package models

import "time"

// Execution run status constants
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusWarning = "WARNING"
	RunStatusFailed  = "FAILED"
)

// Quality check kind constants
const (
	CheckNull       = "NULL_CHECK"
	CheckRange      = "RANGE_CHECK"
	CheckDuplicate  = "DUPLICATE_CHECK"
	CheckContinuity = "CONTINUITY_CHECK"
)

// Quality check target table constants
const (
	TargetDailyPrices         = "daily_prices"
	TargetTechnicalIndicators = "technical_indicators"
)

// RunCounts aggregates record counters across a run
type RunCounts struct {
	Read      int `json:"records_read"`
	Processed int `json:"records_processed"`
	Inserted  int `json:"records_inserted"`
	Updated   int `json:"records_updated"`
	Rejected  int `json:"records_rejected"`
}

// Add merges another set of counters into this one
func (c *RunCounts) Add(other RunCounts) {
	c.Read += other.Read
	c.Processed += other.Processed
	c.Inserted += other.Inserted
	c.Updated += other.Updated
	c.Rejected += other.Rejected
}

// ExecutionRun tracks one end-to-end pipeline execution. The record is
// created RUNNING and transitioned to exactly one terminal status;
// terminal rows are never mutated afterwards.
type ExecutionRun struct {
	RunID        string     `json:"run_id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       string     `json:"status"`
	SymbolsTotal int        `json:"symbols_total"`
	Counts       RunCounts  `json:"counts"`
	ErrorDetail  string     `json:"error_detail,omitempty"`
}

// QualityCheckResult is one append-only row per check per run
type QualityCheckResult struct {
	ID             int       `json:"id"`
	RunID          string    `json:"run_id"`
	Symbol         string    `json:"symbol"`
	TargetTable    string    `json:"target_table"`
	CheckKind      string    `json:"check_kind"`
	RecordsChecked int       `json:"records_checked"`
	RecordsFailed  int       `json:"records_failed"`
	FailureRatio   float64   `json:"failure_ratio"`
	Blocking       bool      `json:"blocking"`
	CreatedAt      time.Time `json:"created_at"`
}

// LoadOutcome reports what one load call did for a symbol batch
type LoadOutcome struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Rejected int `json:"rejected"`
}
