package models

import "time"

// RunEvent represents a Kafka event describing a pipeline run
type RunEvent struct {
	EventType string        `json:"event_type"`
	RunID     string        `json:"run_id"`
	Status    string        `json:"status,omitempty"`
	Run       *ExecutionRun `json:"run,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Stock represents one symbol in the configured universe
type Stock struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Exchange  string    `json:"exchange,omitempty"`
	Sector    string    `json:"sector,omitempty"`
	Industry  string    `json:"industry,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
