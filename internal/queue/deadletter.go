package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
)

// DeadLetterService manages jobs that exhausted their retry budget.
type DeadLetterService struct {
	storage interfaces.DeadLetterStorage
	logger  arbor.ILogger
}

// NewDeadLetterService creates a dead letter service over the given storage
func NewDeadLetterService(storage interfaces.DeadLetterStorage, logger arbor.ILogger) *DeadLetterService {
	return &DeadLetterService{
		storage: storage,
		logger:  logger,
	}
}

// Add records a permanently-failed job. This runs on the failure-handling
// path so it never returns an error: an internal failure is logged and
// reported as an empty ID.
func (s *DeadLetterService) Add(ctx context.Context, originalJobID string, jobType models.JobType, payload json.RawMessage, errMsg, stack string, attempts int) string {
	entry := models.NewDeadLetterEntry(originalJobID, jobType, payload, errMsg, stack, attempts)

	if err := s.storage.Insert(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("original_job_id", originalJobID).
			Str("job_type", string(jobType)).
			Msg("Failed to write dead letter entry")
		return ""
	}

	s.logger.Warn().
		Str("dlq_id", entry.ID).
		Str("original_job_id", originalJobID).
		Str("job_type", string(jobType)).
		Int("attempts", attempts).
		Msg("Job dead-lettered")

	return entry.ID
}

// Entries returns dead letter entries, newest first
func (s *DeadLetterService) Entries(ctx context.Context, limit, offset int, includeReprocessed bool) ([]*models.DeadLetterEntry, error) {
	return s.storage.List(ctx, limit, offset, includeReprocessed)
}

// Get returns one entry or interfaces.ErrNotFound
func (s *DeadLetterService) Get(ctx context.Context, id string) (*models.DeadLetterEntry, error) {
	return s.storage.Get(ctx, id)
}

// Count returns the number of entries
func (s *DeadLetterService) Count(ctx context.Context, includeReprocessed bool) (int, error) {
	return s.storage.Count(ctx, includeReprocessed)
}

// AddJobFn re-enqueues a dead-lettered payload and returns the new job ID.
// The callback keeps the DLQ decoupled from any concrete queue.
type AddJobFn func(ctx context.Context, jobType models.JobType, payload json.RawMessage) (string, error)

// Requeue re-enqueues the entry's payload via addJob and marks the entry
// reprocessed. Returns "" when the entry is missing, already reprocessed,
// or re-enqueue fails; the caller treats "" as not-requeued.
func (s *DeadLetterService) Requeue(ctx context.Context, id string, addJob AddJobFn) string {
	entry, err := s.storage.Get(ctx, id)
	if err != nil {
		s.logger.Warn().Err(err).Str("dlq_id", id).Msg("Dead letter entry not found for requeue")
		return ""
	}
	if entry.Reprocessed {
		s.logger.Warn().Str("dlq_id", id).Msg("Dead letter entry already reprocessed")
		return ""
	}

	newJobID, err := addJob(ctx, entry.JobType, entry.Payload)
	if err != nil {
		s.logger.Error().Err(err).
			Str("dlq_id", id).
			Str("job_type", string(entry.JobType)).
			Msg("Failed to re-enqueue dead letter entry")
		return ""
	}

	if _, err := s.storage.MarkReprocessed(ctx, id); err != nil {
		// The job is already enqueued; the entry stays visible as unhandled
		// and a second requeue would enqueue a duplicate, so surface loudly.
		s.logger.Error().Err(err).Str("dlq_id", id).Msg("Requeued but failed to mark entry reprocessed")
	}

	s.logger.Info().
		Str("dlq_id", id).
		Str("new_job_id", newJobID).
		Msg("Dead letter entry requeued")

	return newJobID
}

// MarkReprocessed marks an entry handled without re-enqueueing it
func (s *DeadLetterService) MarkReprocessed(ctx context.Context, id string) (bool, error) {
	return s.storage.MarkReprocessed(ctx, id)
}

// CleanupOldEntries purges reprocessed entries older than the retention
// window and returns how many were removed. Unhandled entries are never
// purged regardless of age.
func (s *DeadLetterService) CleanupOldEntries(ctx context.Context, olderThanDays int) int {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)

	deleted, err := s.storage.DeleteReprocessedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Int("older_than_days", olderThanDays).Msg("Dead letter cleanup failed")
		return 0
	}

	if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Msg("Dead letter entries purged")
	}
	return deleted
}
