// -----------------------------------------------------------------------
// Queue Service - durable job queue over Badger storage
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
)

// AddJobRequest describes a job to enqueue
type AddJobRequest struct {
	Type           models.JobType
	Payload        interface{}
	Priority       int
	ScheduledFor   *time.Time
	IdempotencyKey string
}

// Service is the durable job queue. Jobs survive restarts, and enqueue is
// idempotent within a calendar day when the caller supplies a key.
type Service struct {
	jobs   interfaces.JobStorage
	logger arbor.ILogger

	// Serializes keyed enqueues so two concurrent Adds with the same key
	// cannot both pass the existence check and insert twice.
	keyedMu sync.Mutex
}

// NewService creates a queue service over the given job storage
func NewService(jobs interfaces.JobStorage, logger arbor.ILogger) *Service {
	return &Service{
		jobs:   jobs,
		logger: logger,
	}
}

// Add enqueues a new pending job. When the request carries an idempotency
// key that already exists for the same scheduling day, the existing job is
// returned instead of creating a duplicate.
func (s *Service) Add(ctx context.Context, req AddJobRequest) (*models.Job, error) {
	if !models.ValidJobType(req.Type) {
		return nil, fmt.Errorf("unknown job type: %s", req.Type)
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload for %s job: %w", req.Type, err)
	}

	job := models.NewJob(req.Type, payload, req.Priority)
	if req.ScheduledFor != nil {
		job.WithSchedule(*req.ScheduledFor)
	}
	if req.IdempotencyKey != "" {
		job.WithIdempotencyKey(req.IdempotencyKey)

		s.keyedMu.Lock()
		defer s.keyedMu.Unlock()

		existing, err := s.jobs.FindByIdempotencyKey(ctx, job.IdempotencyKey, job.IdempotencyDay)
		if err != nil {
			return nil, fmt.Errorf("idempotency lookup failed: %w", err)
		}
		if existing != nil {
			s.logger.Debug().
				Str("job_id", existing.ID).
				Str("idempotency_key", job.IdempotencyKey).
				Str("day", job.IdempotencyDay).
				Msg("Job already enqueued for this key and day")
			return existing, nil
		}
	}

	if err := s.jobs.Insert(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("type", string(job.Type)).
		Int("priority", job.Priority).
		Msg("Job enqueued")

	return job, nil
}

// DueJobs returns up to batchSize pending jobs that are due now, highest
// priority first. Selection does not claim the jobs; the caller transitions
// them to processing job by job.
func (s *Service) DueJobs(ctx context.Context, batchSize int, typeFilter models.JobType) ([]*models.Job, error) {
	return s.jobs.FindDue(ctx, time.Now().UTC(), batchSize, typeFilter)
}

// GetByID returns a job or interfaces.ErrNotFound
func (s *Service) GetByID(ctx context.Context, jobID string) (*models.Job, error) {
	return s.jobs.Get(ctx, jobID)
}

// List returns jobs matching the filter options, newest first
func (s *Service) List(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	return s.jobs.List(ctx, opts)
}

// CountByStatus reports the number of jobs in the given status
func (s *Service) CountByStatus(ctx context.Context, status models.JobStatus) (int, error) {
	return s.jobs.CountByStatus(ctx, status)
}

// Claim transitions a pending job to processing. ErrStatusConflict means a
// sibling instance claimed it first and the caller should skip it.
func (s *Service) Claim(ctx context.Context, jobID string) (*models.Job, error) {
	return s.jobs.UpdateIf(ctx, jobID, models.JobStatusPending, func(job *models.Job) {
		now := time.Now().UTC()
		job.Status = models.JobStatusProcessing
		job.StartedAt = &now
	})
}

// Complete transitions a processing job to completed
func (s *Service) Complete(ctx context.Context, jobID string) (*models.Job, error) {
	return s.jobs.UpdateIf(ctx, jobID, models.JobStatusProcessing, func(job *models.Job) {
		now := time.Now().UTC()
		job.Status = models.JobStatusCompleted
		job.CompletedAt = &now
		job.LastError = ""
		job.ErrorStack = ""
	})
}

// RetryLater records a failed attempt and returns the job to pending with
// its pickup time pushed back, so a future batch retries it.
func (s *Service) RetryLater(ctx context.Context, jobID, errMsg, stack string, retryAt time.Time) (*models.Job, error) {
	return s.jobs.UpdateIf(ctx, jobID, models.JobStatusProcessing, func(job *models.Job) {
		job.Status = models.JobStatusPending
		job.Attempts++
		job.LastError = errMsg
		job.ErrorStack = stack
		job.ScheduledFor = retryAt.UTC()
	})
}

// MarkFailed transitions a processing job to its terminal failed state,
// recording the final attempt and its error.
func (s *Service) MarkFailed(ctx context.Context, jobID, errMsg, stack string) (*models.Job, error) {
	return s.jobs.UpdateIf(ctx, jobID, models.JobStatusProcessing, func(job *models.Job) {
		now := time.Now().UTC()
		job.Status = models.JobStatusFailed
		job.Attempts++
		job.LastError = errMsg
		job.ErrorStack = stack
		job.CompletedAt = &now
	})
}
