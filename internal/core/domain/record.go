package domain

import (
	"encoding/json"
	"time"
)

// Record is a remote entity held as an opaque JSON payload.
// Only the fields needed for storage and display are extracted.
type Record struct {
	EntityType  EntityType      `json:"entity_type"`
	RemoteID    string          `json:"remote_id"`
	DisplayName string          `json:"display_name,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	FetchedAt   time.Time       `json:"fetched_at"`
}

// RecordPage is one page of a remote collection. Received counts every row
// the service returned, including rows that could not be decoded into Records.
type RecordPage struct {
	Records  []Record
	Received int
}

// Malformed returns how many received rows were dropped.
func (p RecordPage) Malformed() int {
	return max(p.Received-len(p.Records), 0)
}

// BudgetLine is one account/period amount parsed from a budget report.
type BudgetLine struct {
	Budget    string  `json:"budget,omitempty"`
	AccountID string  `json:"account_id,omitempty"`
	Account   string  `json:"account"`
	Period    string  `json:"period"`
	Amount    float64 `json:"amount"`
}
