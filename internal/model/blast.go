package model

import "time"

type BlastStatus string

const (
	BlastOpen   BlastStatus = "open"
	BlastClosed BlastStatus = "closed"
)

func (s BlastStatus) Valid() bool {
	return s == BlastOpen || s == BlastClosed
}

type Blast struct {
	ID                int64       `json:"id"`
	Message           string      `json:"message"`
	Status            BlastStatus `json:"status"`
	FiltersJSON       *string     `json:"filters_json"`
	CostEstimateCents int64       `json:"cost_estimate_cents"`
	CreatedAt         time.Time   `json:"created_at"`
}

// RecipientCounts is the per-state breakdown of a blast's recipients.
type RecipientCounts struct {
	Pending int64 `json:"pending_count"`
	Sent    int64 `json:"sent_count"`
	Deleted int64 `json:"deleted_count"`
}

type BlastSummary struct {
	Blast
	RecipientCounts
}
