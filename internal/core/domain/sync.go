package domain

import "time"

// CancelledMessage is the error message of a sync that was cancelled by its caller.
const CancelledMessage = "cancelled"

// SyncResult is the sole outcome of one sync invocation.
// Success is true only if every requested entity type succeeded.
type SyncResult struct {
	RunID         string          `json:"run_id"`
	StartedAt     time.Time       `json:"started_at"`
	Success       bool            `json:"success"`
	RecordsSynced int             `json:"records_synced"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	Duration      time.Duration   `json:"duration"`
	Outcomes      []EntityOutcome `json:"outcomes,omitempty"`
}

// Cancelled reports whether the run ended because its context was cancelled.
func (r SyncResult) Cancelled() bool {
	return !r.Success && r.ErrorMessage == CancelledMessage
}

// EntityOutcome records what happened to one entity type during a run.
type EntityOutcome struct {
	EntityType EntityType `json:"entity_type"`
	Records    int        `json:"records"`
	Malformed  int        `json:"malformed,omitempty"`
	Skipped    bool       `json:"skipped,omitempty"`
	Error      string     `json:"error,omitempty"`
}
