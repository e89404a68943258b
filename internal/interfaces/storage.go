package interfaces

import (
	"context"
	"time"

	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
)

// JobListOptions controls job listing
type JobListOptions struct {
	Status string
	Type   string
	Limit  int
	Offset int
}

// JobStorage persists queue jobs
type JobStorage interface {
	// Insert stores a new job. The job ID must be unique.
	Insert(ctx context.Context, job *models.Job) error

	// Get returns a job by ID, or ErrNotFound.
	Get(ctx context.Context, jobID string) (*models.Job, error)

	// FindByIdempotencyKey returns the job with the given key scheduled on
	// the given calendar day, or nil when none exists.
	FindByIdempotencyKey(ctx context.Context, key, day string) (*models.Job, error)

	// FindDue returns up to limit pending jobs whose ScheduledFor <= now,
	// optionally filtered by type, ordered by priority descending then
	// ScheduledFor ascending.
	FindDue(ctx context.Context, now time.Time, limit int, typeFilter models.JobType) ([]*models.Job, error)

	// UpdateIf applies mutate to the job only when its current status
	// matches expectedStatus, in a single transaction. Returns
	// ErrStatusConflict when the condition does not hold.
	UpdateIf(ctx context.Context, jobID string, expectedStatus models.JobStatus, mutate func(job *models.Job)) (*models.Job, error)

	// List returns jobs matching the options, newest first.
	List(ctx context.Context, opts *JobListOptions) ([]*models.Job, error)

	// CountByStatus returns the number of jobs with the given status.
	CountByStatus(ctx context.Context, status models.JobStatus) (int, error)
}

// DeadLetterStorage persists dead letter entries
type DeadLetterStorage interface {
	Insert(ctx context.Context, entry *models.DeadLetterEntry) error
	Get(ctx context.Context, id string) (*models.DeadLetterEntry, error)
	List(ctx context.Context, limit, offset int, includeReprocessed bool) ([]*models.DeadLetterEntry, error)
	Count(ctx context.Context, includeReprocessed bool) (int, error)

	// MarkReprocessed flips reprocessed false->true. Returns false when the
	// entry is missing or already reprocessed.
	MarkReprocessed(ctx context.Context, id string) (bool, error)

	// DeleteReprocessedBefore removes reprocessed entries whose ProcessedAt
	// is older than the cutoff and returns the number deleted.
	DeleteReprocessedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// LockStorage persists mutual-exclusion leases
type LockStorage interface {
	// TryAcquire atomically stores the lease unless a non-expired lease with
	// a different holder exists. Returns true when the lease was stored.
	TryAcquire(ctx context.Context, lock *models.Lock) (bool, error)

	// Release removes the lease only when the holder matches. Releasing a
	// lock you don't hold is a no-op.
	Release(ctx context.Context, name, holderID string) error

	Get(ctx context.Context, name string) (*models.Lock, error)
}

// FilingStorage persists discovered filings
type FilingStorage interface {
	Save(ctx context.Context, filing *models.Filing) error
	GetByID(ctx context.Context, id string) (*models.Filing, error)

	// FindByKey returns the filing for the day-bounded dedup key, or nil.
	FindByKey(ctx context.Context, key string) (*models.Filing, error)

	ListRecent(ctx context.Context, limit int) ([]*models.Filing, error)

	// ArchiveOlderThan marks filings filed before the cutoff as archived and
	// returns the number archived.
	ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// CompanyStorage persists tracked issuers
type CompanyStorage interface {
	Upsert(ctx context.Context, company *models.Company) error
	GetByCIK(ctx context.Context, cik string) (*models.Company, error)
	List(ctx context.Context) ([]*models.Company, error)
}

// DocumentStorage persists parsed filing documents
type DocumentStorage interface {
	Save(ctx context.Context, doc *models.FilingDocument) error
	Get(ctx context.Context, filingID string) (*models.FilingDocument, error)
}

// SummaryStorage persists filing summaries
type SummaryStorage interface {
	Save(ctx context.Context, summary *models.Summary) error
	GetByFilingID(ctx context.Context, filingID string) (*models.Summary, error)
}

// StorageManager aggregates the per-entity storages over one connection
type StorageManager interface {
	JobStorage() JobStorage
	DeadLetterStorage() DeadLetterStorage
	LockStorage() LockStorage
	FilingStorage() FilingStorage
	CompanyStorage() CompanyStorage
	DocumentStorage() DocumentStorage
	SummaryStorage() SummaryStorage
	Close() error
}
