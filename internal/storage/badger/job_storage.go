package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
)

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) Insert(ctx context.Context, job *models.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	s.logger.Trace().
		Str("job_id", job.ID).
		Str("type", string(job.Type)).
		Msg("BadgerDB: inserting job")

	if err := s.db.Store().Insert(job.ID, *job); err != nil {
		if err == badgerhold.ErrKeyExists {
			return interfaces.ErrDuplicateKey
		}
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("BadgerDB: failed to insert job")
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

func (s *JobStorage) Get(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return &job, nil
}

func (s *JobStorage) FindByIdempotencyKey(ctx context.Context, key, day string) (*models.Job, error) {
	if key == "" {
		return nil, nil
	}

	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("IdempotencyKey").Eq(key)); err != nil {
		return nil, fmt.Errorf("failed to query idempotency key: %w", err)
	}

	for i := range jobs {
		if jobs[i].IdempotencyDay == day {
			return &jobs[i], nil
		}
	}
	return nil, nil
}

func (s *JobStorage) FindDue(ctx context.Context, now time.Time, limit int, typeFilter models.JobType) ([]*models.Job, error) {
	// Query pending jobs via the status index, then apply the time filter
	// and ordering in memory (BadgerHold time comparisons in criteria are
	// unreliable with indexed queries).
	var pending []models.Job
	if err := s.db.Store().Find(&pending, badgerhold.Where("Status").Eq(models.JobStatusPending).Index("Status")); err != nil {
		return nil, fmt.Errorf("failed to find pending jobs: %w", err)
	}

	due := make([]*models.Job, 0, len(pending))
	for i := range pending {
		if typeFilter != "" && pending[i].Type != typeFilter {
			continue
		}
		if pending[i].ScheduledFor.After(now) {
			continue
		}
		due = append(due, &pending[i])
	}

	// Priority descending, then oldest scheduled first, creation time as the
	// FIFO tiebreak.
	sort.Slice(due, func(a, b int) bool {
		if due[a].Priority != due[b].Priority {
			return due[a].Priority > due[b].Priority
		}
		if !due[a].ScheduledFor.Equal(due[b].ScheduledFor) {
			return due[a].ScheduledFor.Before(due[b].ScheduledFor)
		}
		return due[a].CreatedAt.Before(due[b].CreatedAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (s *JobStorage) UpdateIf(ctx context.Context, jobID string, expectedStatus models.JobStatus, mutate func(job *models.Job)) (*models.Job, error) {
	var updated *models.Job

	err := s.db.Store().UpdateMatching(&models.Job{},
		badgerhold.Where(badgerhold.Key).Eq(jobID).And("Status").Eq(expectedStatus),
		func(record interface{}) error {
			job, ok := record.(*models.Job)
			if !ok {
				return fmt.Errorf("unexpected record type %T", record)
			}
			mutate(job)
			job.Version++
			job.UpdatedAt = time.Now().UTC()
			updated = job
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to update job %s: %w", jobID, err)
	}

	if updated == nil {
		// No row matched: the job is missing or someone else transitioned it
		// first. Distinguish the two for the caller.
		if _, err := s.Get(ctx, jobID); err != nil {
			return nil, err
		}
		s.logger.Debug().
			Str("job_id", jobID).
			Str("expected_status", string(expectedStatus)).
			Msg("BadgerDB: conditional job update matched nothing")
		return nil, interfaces.ErrStatusConflict
	}

	return updated, nil
}

func (s *JobStorage) List(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, nil); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.Job, 0, len(jobs))
	for i := range jobs {
		if opts != nil && opts.Status != "" && string(jobs[i].Status) != opts.Status {
			continue
		}
		if opts != nil && opts.Type != "" && string(jobs[i].Type) != opts.Type {
			continue
		}
		result = append(result, &jobs[i])
	}

	// Newest first
	sort.Slice(result, func(a, b int) bool {
		return result[a].CreatedAt.After(result[b].CreatedAt)
	})

	if opts != nil {
		if opts.Offset > 0 {
			if opts.Offset >= len(result) {
				return []*models.Job{}, nil
			}
			result = result[opts.Offset:]
		}
		if opts.Limit > 0 && opts.Limit < len(result) {
			result = result[:opts.Limit]
		}
	}

	return result, nil
}

func (s *JobStorage) CountByStatus(ctx context.Context, status models.JobStatus) (int, error) {
	count, err := s.db.Store().Count(&models.Job{}, badgerhold.Where("Status").Eq(status).Index("Status"))
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return int(count), nil
}
