package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/common"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/queue"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/services/lock"
	badgerstorage "github.com/wilfred-py/tldrsec-ai-sub003/internal/storage/badger"
)

func newTestScheduler(t *testing.T) (*Service, *queue.Service) {
	t.Helper()
	logger := common.GetLogger()

	manager, err := badgerstorage.NewManager(logger, &common.BadgerConfig{
		Path: t.TempDir() + "/badger",
	})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	jobsConfig := &common.JobsConfig{
		BatchSize:        10,
		MaxAttempts:      3,
		RetryBackoffBase: "30s",
		RetryBackoffMax:  "30m",
		LockTTL:          "5m",
	}

	queueService := queue.NewService(manager.JobStorage(), logger)
	deadLetter := queue.NewDeadLetterService(manager.DeadLetterStorage(), logger)
	locks := lock.NewService(manager.LockStorage(), logger, jobsConfig.LockTTLDuration())
	processor := queue.NewProcessor(queueService, deadLetter, locks, jobsConfig, logger)

	schedulerConfig := &common.SchedulerConfig{
		Enabled:              true,
		CheckFilingsSchedule: "*/15 * * * *",
		ProcessSchedule:      "*/1 * * * *",
		ArchiveSchedule:      "0 3 * * *",
		CleanupSchedule:      "0 4 * * 0",
	}

	svc := NewService(schedulerConfig, queueService, processor, deadLetter, &common.DLQConfig{RetentionDays: 30}, logger)
	return svc.(*Service), queueService
}

func TestScheduler_StartStop(t *testing.T) {
	svc, _ := newTestScheduler(t)

	assert.False(t, svc.IsRunning())
	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())

	assert.Len(t, svc.jobs, 4)
	for _, name := range []string{"check-filings", "process-jobs", "archive-filings", "cleanup-dead-letters"} {
		assert.Contains(t, svc.jobs, name)
	}

	err := svc.Start()
	assert.Error(t, err, "second start must be rejected")

	require.NoError(t, svc.Stop())
	assert.False(t, svc.IsRunning())
	require.NoError(t, svc.Stop(), "stop is idempotent")
}

func TestScheduler_InvalidScheduleRejected(t *testing.T) {
	svc, _ := newTestScheduler(t)
	svc.config.ProcessSchedule = "not a cron expression"

	err := svc.Start()
	require.Error(t, err)
	assert.False(t, svc.IsRunning())
}

func TestScheduler_CheckFilingsTickIsIdempotent(t *testing.T) {
	svc, queueService := newTestScheduler(t)
	ctx := context.Background()

	// Two firings within the same minute collapse into one queued job
	require.NoError(t, svc.enqueueCheckFilings())
	require.NoError(t, svc.enqueueCheckFilings())

	jobs, err := queueService.List(ctx, &interfaces.JobListOptions{Status: string(models.JobStatusPending), Limit: 10})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
	assert.Equal(t, models.JobTypeCheckFilings, jobs[0].Type)
}

func TestScheduler_ArchiveTickIsIdempotent(t *testing.T) {
	svc, queueService := newTestScheduler(t)
	ctx := context.Background()

	require.NoError(t, svc.enqueueArchive())
	require.NoError(t, svc.enqueueArchive())

	jobs, err := queueService.List(ctx, &interfaces.JobListOptions{Status: string(models.JobStatusPending), Limit: 10})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
	assert.Equal(t, models.JobTypeArchiveFilings, jobs[0].Type)
}

func TestScheduler_ProcessingPassOnEmptyQueue(t *testing.T) {
	svc, _ := newTestScheduler(t)
	require.NoError(t, svc.runProcessingPass())
}
