package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/common"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/queue"
)

// jobEntry is a registered cron job with execution metadata
type jobEntry struct {
	name      string
	schedule  string
	handler   func() error
	cronID    cron.EntryID
	lastRun   *time.Time
	isRunning bool
	lastError string
}

// Service drives the background pipeline on cron schedules: polling the
// EDGAR feed, running the queue processor, archiving old filings, and
// purging handled dead letter entries. Each tick only enqueues or runs a
// processing pass; the distributed lock inside the processor keeps
// concurrent instances from stepping on each other.
type Service struct {
	config     *common.SchedulerConfig
	queue      *queue.Service
	processor  *queue.Processor
	deadLetter *queue.DeadLetterService
	dlqConfig  *common.DLQConfig
	cron       *cron.Cron
	logger     arbor.ILogger
	jobMu      sync.Mutex
	jobs       map[string]*jobEntry
	running    bool
}

func NewService(config *common.SchedulerConfig, queueService *queue.Service, processor *queue.Processor, deadLetter *queue.DeadLetterService, dlqConfig *common.DLQConfig, logger arbor.ILogger) interfaces.SchedulerService {
	return &Service{
		config:     config,
		queue:      queueService,
		processor:  processor,
		deadLetter: deadLetter,
		dlqConfig:  dlqConfig,
		cron:       cron.New(),
		logger:     logger,
		jobs:       make(map[string]*jobEntry),
	}
}

// Start registers the standard jobs and begins the cron loop
func (s *Service) Start() error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	registrations := []struct {
		name     string
		schedule string
		handler  func() error
	}{
		{"check-filings", s.config.CheckFilingsSchedule, s.enqueueCheckFilings},
		{"process-jobs", s.config.ProcessSchedule, s.runProcessingPass},
		{"archive-filings", s.config.ArchiveSchedule, s.enqueueArchive},
		{"cleanup-dead-letters", s.config.CleanupSchedule, s.cleanupDeadLetters},
	}

	for _, reg := range registrations {
		if err := s.registerJob(reg.name, reg.schedule, reg.handler); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop. In-flight handlers run to completion.
func (s *Service) Stop() error {
	if !s.running {
		return nil
	}

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Scheduler jobs did not finish within shutdown timeout")
	}

	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if the cron loop is active
func (s *Service) IsRunning() bool {
	return s.running
}

func (s *Service) registerJob(name string, schedule string, handler func() error) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	entry := &jobEntry{
		name:     name,
		schedule: schedule,
		handler:  handler,
	}

	cronID, err := s.cron.AddFunc(schedule, func() {
		s.executeJob(name)
	})
	if err != nil {
		return fmt.Errorf("failed to register %s with schedule %q: %w", name, schedule, err)
	}

	entry.cronID = cronID
	s.jobs[name] = entry

	s.logger.Info().
		Str("job_name", name).
		Str("schedule", schedule).
		Msg("Scheduler job registered")

	return nil
}

// executeJob wraps a handler with panic recovery and status tracking
func (s *Service) executeJob(name string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("job_name", name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in scheduler job")

			s.jobMu.Lock()
			if entry, exists := s.jobs[name]; exists {
				entry.isRunning = false
				entry.lastError = fmt.Sprintf("panic: %v", r)
			}
			s.jobMu.Unlock()
		}
	}()

	s.jobMu.Lock()
	entry, exists := s.jobs[name]
	if !exists {
		s.jobMu.Unlock()
		return
	}
	if entry.isRunning {
		s.jobMu.Unlock()
		s.logger.Debug().Str("job_name", name).Msg("Previous run still active, skipping tick")
		return
	}
	entry.isRunning = true
	handler := entry.handler
	s.jobMu.Unlock()

	started := time.Now()
	err := handler()
	completed := time.Now()

	s.jobMu.Lock()
	entry.isRunning = false
	entry.lastRun = &completed
	if err != nil {
		entry.lastError = err.Error()
	} else {
		entry.lastError = ""
	}
	s.jobMu.Unlock()

	if err != nil {
		s.logger.Error().
			Str("job_name", name).
			Err(err).
			Dur("duration", time.Since(started)).
			Msg("Scheduler job failed")
	} else {
		s.logger.Debug().
			Str("job_name", name).
			Dur("duration", time.Since(started)).
			Msg("Scheduler job completed")
	}
}

// enqueueCheckFilings adds a feed poll job. The idempotency key embeds the
// tick timestamp so each tick yields its own job while a redelivered tick
// does not.
func (s *Service) enqueueCheckFilings() error {
	ctx := context.Background()
	tick := time.Now().UTC().Format("2006-01-02T15:04")

	_, err := s.queue.Add(ctx, queue.AddJobRequest{
		Type:           models.JobTypeCheckFilings,
		Payload:        models.CheckFilingsPayload{},
		Priority:       models.PriorityHigh,
		IdempotencyKey: "check-filings-" + tick,
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue feed check: %w", err)
	}
	return nil
}

// runProcessingPass executes one batch of due jobs
func (s *Service) runProcessingPass() error {
	ctx := context.Background()

	result, err := s.processor.ProcessJobs(ctx, "")
	if err != nil {
		return err
	}
	if result.Skipped {
		return nil
	}
	if result.Processed > 0 || result.Failed > 0 {
		s.logger.Info().
			Int("processed", result.Processed).
			Int("failed", result.Failed).
			Dur("duration", result.Duration).
			Msg("Scheduled processing pass completed")
	}
	return nil
}

// enqueueArchive adds a daily archive job
func (s *Service) enqueueArchive() error {
	ctx := context.Background()
	day := time.Now().UTC().Format("2006-01-02")

	_, err := s.queue.Add(ctx, queue.AddJobRequest{
		Type:           models.JobTypeArchiveFilings,
		Payload:        models.ArchiveFilingsPayload{},
		Priority:       models.PriorityLow,
		IdempotencyKey: "archive-filings-" + day,
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue archive job: %w", err)
	}
	return nil
}

// cleanupDeadLetters purges reprocessed entries past the retention window
func (s *Service) cleanupDeadLetters() error {
	ctx := context.Background()
	deleted := s.deadLetter.CleanupOldEntries(ctx, s.dlqConfig.RetentionDays)
	if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Msg("Purged reprocessed dead letter entries")
	}
	return nil
}
