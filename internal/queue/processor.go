// -----------------------------------------------------------------------
// Processor - lock-guarded batch execution of due jobs
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/common"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/services/lock"
)

// Handler executes one job. A returned error wrapping
// interfaces.ErrPermanent dead-letters the job without further retries.
type Handler func(ctx context.Context, job *models.Job) error

// ProcessResult summarizes one processing pass
type ProcessResult struct {
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Skipped   bool          `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// Processor pulls due jobs in batches under a named lock and dispatches
// them to registered handlers. One pass runs per trigger; overlapping
// triggers across instances collapse onto whichever one holds the lock.
type Processor struct {
	queue      *Service
	deadLetter *DeadLetterService
	locks      *lock.Service
	handlers   map[models.JobType]Handler
	config     *common.JobsConfig
	logger     arbor.ILogger
}

// NewProcessor creates a processor with an empty dispatch table
func NewProcessor(queue *Service, deadLetter *DeadLetterService, locks *lock.Service, config *common.JobsConfig, logger arbor.ILogger) *Processor {
	return &Processor{
		queue:      queue,
		deadLetter: deadLetter,
		locks:      locks,
		handlers:   make(map[models.JobType]Handler),
		config:     config,
		logger:     logger,
	}
}

// RegisterHandler binds a job type to its handler. Adding a job type is a
// registration at startup, not a new branch in the processor.
func (p *Processor) RegisterHandler(jobType models.JobType, handler Handler) {
	p.handlers[jobType] = handler
}

func lockName(typeFilter models.JobType) string {
	if typeFilter == "" {
		return lock.LockJobProcessing
	}
	return lock.LockJobProcessing + "-" + string(typeFilter)
}

// ProcessJobs runs one batch pass. When the lock is held by another
// instance the pass is reported as skipped, which callers treat as
// success: the work is being covered elsewhere.
func (p *Processor) ProcessJobs(ctx context.Context, typeFilter models.JobType) (*ProcessResult, error) {
	started := time.Now()
	result := &ProcessResult{}

	name := lockName(typeFilter)
	if !p.locks.Acquire(ctx, name) {
		result.Skipped = true
		result.Duration = time.Since(started)
		p.logger.Info().Str("lock", name).Msg("Processing pass skipped, lock held elsewhere")
		return result, nil
	}
	defer p.locks.Release(ctx, name)

	jobs, err := p.queue.DueJobs(ctx, p.config.BatchSize, typeFilter)
	if err != nil {
		result.Duration = time.Since(started)
		return result, fmt.Errorf("failed to fetch due jobs: %w", err)
	}

	if len(jobs) == 0 {
		result.Duration = time.Since(started)
		return result, nil
	}

	p.logger.Info().
		Int("count", len(jobs)).
		Str("type_filter", string(typeFilter)).
		Msg("Processing job batch")

	for _, job := range jobs {
		if p.processOne(ctx, job) {
			result.Processed++
		} else {
			result.Failed++
		}
	}

	result.Duration = time.Since(started)
	p.logger.Info().
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Str("duration", result.Duration.String()).
		Msg("Processing pass complete")

	return result, nil
}

// processOne claims and runs a single job. Returns true when the job
// completed (including skip-because-claimed-elsewhere, which is not a
// failure of this pass).
func (p *Processor) processOne(ctx context.Context, job *models.Job) (succeeded bool) {
	claimed, err := p.queue.Claim(ctx, job.ID)
	if err != nil {
		if errors.Is(err, interfaces.ErrStatusConflict) {
			p.logger.Debug().Str("job_id", job.ID).Msg("Job claimed by another instance, skipping")
			return true
		}
		p.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to claim job")
		return false
	}

	// A panic inside a handler must not take down the batch.
	defer func() {
		if r := recover(); r != nil {
			p.handleFailure(ctx, claimed, fmt.Errorf("handler panic: %v", r), string(debug.Stack()))
			succeeded = false
		}
	}()

	handler, ok := p.handlers[claimed.Type]
	if !ok {
		p.handleFailure(ctx, claimed,
			fmt.Errorf("%w: no handler registered for job type %s", interfaces.ErrPermanent, claimed.Type), "")
		return false
	}

	started := time.Now()
	p.logger.Debug().
		Str("job_id", claimed.ID).
		Str("type", string(claimed.Type)).
		Int("attempt", claimed.Attempts+1).
		Msg("Dispatching job")

	if err := handler(ctx, claimed); err != nil {
		p.handleFailure(ctx, claimed, err, "")
		return false
	}

	if _, err := p.queue.Complete(ctx, claimed.ID); err != nil {
		// The handler's work is done; a lost completion write means the job
		// may re-run later. Log it and keep the batch going.
		p.logger.Error().Err(err).Str("job_id", claimed.ID).Msg("Failed to mark job completed")
		return false
	}

	p.logger.Info().
		Str("job_id", claimed.ID).
		Str("type", string(claimed.Type)).
		Str("duration", time.Since(started).String()).
		Msg("Job completed")

	return true
}

// handleFailure routes a failed attempt to retry or the dead letter queue.
// A permanent error or an exhausted retry budget dead-letters the job;
// anything else goes back to pending with its pickup time pushed back.
func (p *Processor) handleFailure(ctx context.Context, job *models.Job, handlerErr error, stack string) {
	attempts := job.Attempts + 1
	permanent := errors.Is(handlerErr, interfaces.ErrPermanent)

	if permanent || attempts >= p.config.MaxAttempts {
		// DLQ first: if the final status write is lost, the entry already
		// exists and the job shows up as still processing rather than
		// silently dropped.
		p.deadLetter.Add(ctx, job.ID, job.Type, job.Payload, handlerErr.Error(), stack, attempts)

		if _, err := p.queue.MarkFailed(ctx, job.ID, handlerErr.Error(), stack); err != nil {
			p.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to mark job failed")
		}

		p.logger.Warn().
			Str("job_id", job.ID).
			Str("type", string(job.Type)).
			Int("attempts", attempts).
			Bool("permanent", permanent).
			Str("error", handlerErr.Error()).
			Msg("Job failed terminally")
		return
	}

	retryAt := time.Now().UTC().Add(p.backoff(attempts))
	if _, err := p.queue.RetryLater(ctx, job.ID, handlerErr.Error(), stack, retryAt); err != nil {
		p.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to schedule job retry")
		return
	}

	p.logger.Warn().
		Str("job_id", job.ID).
		Str("type", string(job.Type)).
		Int("attempt", attempts).
		Str("retry_at", retryAt.Format(time.RFC3339)).
		Str("error", handlerErr.Error()).
		Msg("Job failed, retry scheduled")
}

// backoff returns base * 2^(attempts-1), capped at the configured maximum
func (p *Processor) backoff(attempts int) time.Duration {
	base := p.config.RetryBackoffBaseDuration()
	max := p.config.RetryBackoffMaxDuration()

	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if max > 0 && d > max {
		return max
	}
	return d
}
