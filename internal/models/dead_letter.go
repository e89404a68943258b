package models

import (
	"encoding/json"
	"time"

	"github.com/wilfred-py/tldrsec-ai-sub003/internal/common"
)

// DeadLetterEntry is a frozen snapshot of a job that exhausted its retry
// budget. Entries are created exactly once per dead-lettered job and kept
// until a reprocessed entry ages out of the retention window.
type DeadLetterEntry struct {
	ID            string          `badgerhold:"key" json:"id"`
	OriginalJobID string          `json:"original_job_id"`
	JobType       JobType         `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Error         string          `json:"error"`
	Stack         string          `json:"stack,omitempty"`
	Attempts      int             `json:"attempts"`

	Reprocessed bool       `badgerhold:"index" json:"reprocessed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewDeadLetterEntry creates an entry from a permanently-failed job
func NewDeadLetterEntry(originalJobID string, jobType JobType, payload json.RawMessage, errMsg, stack string, attempts int) *DeadLetterEntry {
	return &DeadLetterEntry{
		ID:            common.NewDeadLetterID(),
		OriginalJobID: originalJobID,
		JobType:       jobType,
		Payload:       payload,
		Error:         errMsg,
		Stack:         stack,
		Attempts:      attempts,
		CreatedAt:     time.Now().UTC(),
	}
}

// MarkReprocessed flips the entry to reprocessed. Returns false if it
// already was, so the false->true transition happens exactly once.
func (e *DeadLetterEntry) MarkReprocessed() bool {
	if e.Reprocessed {
		return false
	}
	now := time.Now().UTC()
	e.Reprocessed = true
	e.ProcessedAt = &now
	return true
}
