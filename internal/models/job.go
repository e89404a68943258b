// -----------------------------------------------------------------------
// Job - durable unit of deferred, retryable work
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wilfred-py/tldrsec-ai-sub003/internal/common"
)

// JobType identifies the handler a job is dispatched to
type JobType string

const (
	JobTypeCheckFilings    JobType = "check_filings"
	JobTypeProcessFiling   JobType = "process_filing"
	JobTypeSummarizeFiling JobType = "summarize_filing"
	JobTypeArchiveFilings  JobType = "archive_filings"
)

// ValidJobType reports whether t is one of the known job types
func ValidJobType(t JobType) bool {
	switch t {
	case JobTypeCheckFilings, JobTypeProcessFiling, JobTypeSummarizeFiling, JobTypeArchiveFilings:
		return true
	}
	return false
}

// JobStatus tracks the job lifecycle: pending -> processing -> completed | failed
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job priorities. Higher values are dequeued first.
const (
	PriorityLow    = 0
	PriorityNormal = 5
	PriorityHigh   = 10
)

// Job is a persisted unit of deferred work. Jobs are created once via enqueue
// and afterwards mutated only by the processor; they are never deleted so the
// queue doubles as an audit log.
type Job struct {
	ID      string          `badgerhold:"key" json:"id"`
	Type    JobType         `badgerhold:"index" json:"type"`
	Payload json.RawMessage `json:"payload"`

	Status       JobStatus `badgerhold:"index" json:"status"`
	Priority     int       `json:"priority"`
	ScheduledFor time.Time `json:"scheduled_for"`

	// IdempotencyKey plus its scheduling day form the duplicate-suppression
	// window: the same key on the same day is treated as already requested.
	IdempotencyKey string `badgerhold:"index" json:"idempotency_key,omitempty"`
	IdempotencyDay string `json:"idempotency_day,omitempty"`

	Attempts   int    `json:"attempts"`
	LastError  string `json:"last_error,omitempty"`
	ErrorStack string `json:"error_stack,omitempty"`

	// Version increments on every write; status transitions are conditional
	// on it so two instances racing on the same job cannot both win.
	Version int `json:"version"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a pending job scheduled for immediate pickup
func NewJob(jobType JobType, payload json.RawMessage, priority int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:           common.NewJobID(),
		Type:         jobType,
		Payload:      payload,
		Status:       JobStatusPending,
		Priority:     priority,
		ScheduledFor: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// WithSchedule sets the earliest pickup time and derives the idempotency day
func (j *Job) WithSchedule(at time.Time) *Job {
	j.ScheduledFor = at.UTC()
	if j.IdempotencyKey != "" {
		j.IdempotencyDay = IdempotencyDay(j.ScheduledFor)
	}
	return j
}

// WithIdempotencyKey sets the duplicate-suppression key for this job
func (j *Job) WithIdempotencyKey(key string) *Job {
	j.IdempotencyKey = key
	j.IdempotencyDay = IdempotencyDay(j.ScheduledFor)
	return j
}

// IdempotencyDay renders the calendar day used for the dedup window
func IdempotencyDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// IsTerminal returns true if the job can no longer transition
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// IsDue reports whether the job is eligible for pickup at the given time
func (j *Job) IsDue(now time.Time) bool {
	return j.Status == JobStatusPending && !j.ScheduledFor.After(now)
}

// Validate validates the job before persistence
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if !ValidJobType(j.Type) {
		return fmt.Errorf("unknown job type: %s", j.Type)
	}
	return nil
}

// UnmarshalPayload decodes the job payload into v
func (j *Job) UnmarshalPayload(v interface{}) error {
	if len(j.Payload) == 0 {
		return fmt.Errorf("job %s has no payload", j.ID)
	}
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload for job %s: %w", j.ID, err)
	}
	return nil
}

// CheckFilingsPayload is the payload for check_filings jobs
type CheckFilingsPayload struct {
	FilingType string `json:"filing_type,omitempty"` // Optional form type filter, e.g. "10-K"
}

// ProcessFilingPayload is the payload for process_filing jobs
type ProcessFilingPayload struct {
	FilingID   string `json:"filing_id"`
	FilingURL  string `json:"filing_url"`
	FilingType string `json:"filing_type"`
	Ticker     string `json:"ticker"`
}

// SummarizeFilingPayload is the payload for summarize_filing jobs
type SummarizeFilingPayload struct {
	FilingID string `json:"filing_id"`
}

// ArchiveFilingsPayload is the payload for archive_filings jobs
type ArchiveFilingsPayload struct {
	OlderThanDays int `json:"older_than_days,omitempty"`
}
