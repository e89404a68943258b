package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/wilfred-py/tldrsec-ai-sub003/internal/common"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/services/lock"
)

func newTestProcessor(t *testing.T, storage interfaces.StorageManager) (*Processor, *Service, *DeadLetterService) {
	t.Helper()

	logger := common.GetLogger()
	queue := NewService(storage.JobStorage(), logger)
	deadLetter := NewDeadLetterService(storage.DeadLetterStorage(), logger)
	locks := lock.NewService(storage.LockStorage(), logger, 5*time.Minute)

	config := &common.JobsConfig{
		BatchSize:        10,
		MaxAttempts:      3,
		RetryBackoffBase: "0s", // Immediate retries keep the tests single-pass-per-attempt
		RetryBackoffMax:  "0s",
	}

	return NewProcessor(queue, deadLetter, locks, config, logger), queue, deadLetter
}

func TestProcessor_CompletesJob(t *testing.T) {
	storage := newTestStorage(t)
	processor, queue, _ := newTestProcessor(t, storage)
	ctx := context.Background()

	handled := 0
	processor.RegisterHandler(models.JobTypeCheckFilings, func(ctx context.Context, job *models.Job) error {
		handled++
		return nil
	})

	job, err := queue.Add(ctx, AddJobRequest{Type: models.JobTypeCheckFilings, Payload: models.CheckFilingsPayload{}})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	result, err := processor.ProcessJobs(ctx, "")
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if result.Processed != 1 || result.Failed != 0 || result.Skipped {
		t.Errorf("unexpected result: %+v", result)
	}
	if handled != 1 {
		t.Errorf("expected handler to run once, ran %d times", handled)
	}

	got, err := queue.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != models.JobStatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
}

func TestProcessor_RetryToDeadLetterBoundary(t *testing.T) {
	storage := newTestStorage(t)
	processor, queue, deadLetter := newTestProcessor(t, storage)
	ctx := context.Background()

	processor.RegisterHandler(models.JobTypeProcessFiling, func(ctx context.Context, job *models.Job) error {
		return fmt.Errorf("document fetch failed")
	})

	job, err := queue.Add(ctx, AddJobRequest{
		Type:    models.JobTypeProcessFiling,
		Payload: models.ProcessFilingPayload{FilingID: "filing_1"},
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// Attempts 1 and 2 go back to pending
	for pass := 1; pass <= 2; pass++ {
		result, err := processor.ProcessJobs(ctx, "")
		if err != nil {
			t.Fatalf("pass %d failed: %v", pass, err)
		}
		if result.Failed != 1 {
			t.Fatalf("pass %d: expected 1 failure, got %+v", pass, result)
		}

		got, err := queue.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.Status != models.JobStatusPending {
			t.Fatalf("pass %d: expected pending for retry, got %s", pass, got.Status)
		}
		if got.Attempts != pass {
			t.Fatalf("pass %d: expected %d attempts, got %d", pass, pass, got.Attempts)
		}
		if count, _ := deadLetter.Count(ctx, true); count != 0 {
			t.Fatalf("pass %d: expected no dead letters yet, got %d", pass, count)
		}
	}

	// Attempt 3 exhausts the budget
	if _, err := processor.ProcessJobs(ctx, ""); err != nil {
		t.Fatalf("final pass failed: %v", err)
	}

	got, err := queue.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != models.JobStatusFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}
	if got.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", got.Attempts)
	}

	entries, err := deadLetter.Entries(ctx, 10, 0, true)
	if err != nil {
		t.Fatalf("entries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one dead letter entry, got %d", len(entries))
	}
	if entries[0].OriginalJobID != job.ID || entries[0].Attempts != 3 {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestProcessor_RecoveryBeforeLimitNeverDeadLetters(t *testing.T) {
	storage := newTestStorage(t)
	processor, queue, deadLetter := newTestProcessor(t, storage)
	ctx := context.Background()

	failures := 0
	processor.RegisterHandler(models.JobTypeProcessFiling, func(ctx context.Context, job *models.Job) error {
		if failures < 2 {
			failures++
			return fmt.Errorf("transient error %d", failures)
		}
		return nil
	})

	job, err := queue.Add(ctx, AddJobRequest{
		Type:    models.JobTypeProcessFiling,
		Payload: models.ProcessFilingPayload{FilingID: "filing_1"},
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	for pass := 0; pass < 3; pass++ {
		if _, err := processor.ProcessJobs(ctx, ""); err != nil {
			t.Fatalf("pass %d failed: %v", pass, err)
		}
	}

	got, err := queue.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != models.JobStatusCompleted {
		t.Errorf("expected completed after recovery, got %s", got.Status)
	}
	if count, _ := deadLetter.Count(ctx, true); count != 0 {
		t.Errorf("expected no dead letters, got %d", count)
	}
}

func TestProcessor_PermanentErrorDeadLettersImmediately(t *testing.T) {
	storage := newTestStorage(t)
	processor, queue, deadLetter := newTestProcessor(t, storage)
	ctx := context.Background()

	processor.RegisterHandler(models.JobTypeProcessFiling, func(ctx context.Context, job *models.Job) error {
		return fmt.Errorf("%w: PDF filings are not extractable", interfaces.ErrPermanent)
	})

	job, err := queue.Add(ctx, AddJobRequest{
		Type:    models.JobTypeProcessFiling,
		Payload: models.ProcessFilingPayload{FilingID: "filing_1"},
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if _, err := processor.ProcessJobs(ctx, ""); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	got, err := queue.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != models.JobStatusFailed {
		t.Errorf("expected failed after permanent error, got %s", got.Status)
	}
	if count, _ := deadLetter.Count(ctx, true); count != 1 {
		t.Errorf("expected one dead letter, got %d", count)
	}
}

func TestProcessor_SkipsWhenLockHeld(t *testing.T) {
	storage := newTestStorage(t)
	processor, queue, _ := newTestProcessor(t, storage)
	ctx := context.Background()

	processor.RegisterHandler(models.JobTypeCheckFilings, func(ctx context.Context, job *models.Job) error {
		return nil
	})
	if _, err := queue.Add(ctx, AddJobRequest{Type: models.JobTypeCheckFilings, Payload: models.CheckFilingsPayload{}}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// Another instance holds the processing lock
	other := lock.NewService(storage.LockStorage(), common.GetLogger(), 5*time.Minute)
	if !other.Acquire(ctx, lock.LockJobProcessing) {
		t.Fatal("expected foreign acquire to succeed")
	}

	result, err := processor.ProcessJobs(ctx, "")
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if !result.Skipped || result.Processed != 0 {
		t.Errorf("expected skipped pass, got %+v", result)
	}

	// Job is untouched for the lock holder to pick up
	pending, err := queue.CountByStatus(ctx, models.JobStatusPending)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if pending != 1 {
		t.Errorf("expected job to stay pending, got %d pending", pending)
	}
}

func TestProcessor_UnregisteredTypeIsPermanent(t *testing.T) {
	storage := newTestStorage(t)
	processor, queue, deadLetter := newTestProcessor(t, storage)
	ctx := context.Background()

	// Valid type, but nothing registered for it
	if _, err := queue.Add(ctx, AddJobRequest{Type: models.JobTypeArchiveFilings, Payload: models.ArchiveFilingsPayload{}}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	result, err := processor.ProcessJobs(ctx, "")
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("expected 1 failure, got %+v", result)
	}
	if count, _ := deadLetter.Count(ctx, true); count != 1 {
		t.Errorf("expected immediate dead letter for unhandled type, got %d", count)
	}
}

func TestDeadLetterService_RequeueMarksReprocessed(t *testing.T) {
	storage := newTestStorage(t)
	_, _, deadLetter := newTestProcessor(t, storage)
	ctx := context.Background()

	id := deadLetter.Add(ctx, "job_1", models.JobTypeProcessFiling,
		[]byte(`{"filing_id":"filing_1"}`), "boom", "", 3)
	if id == "" {
		t.Fatal("expected dead letter id")
	}

	newJobID := deadLetter.Requeue(ctx, id, func(ctx context.Context, jobType models.JobType, payload json.RawMessage) (string, error) {
		return "job-123", nil
	})
	if newJobID != "job-123" {
		t.Errorf("expected job-123, got %q", newJobID)
	}

	entry, err := deadLetter.Get(ctx, id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !entry.Reprocessed || entry.ProcessedAt == nil {
		t.Errorf("expected reprocessed entry, got %+v", entry)
	}

	// A second requeue is refused
	if again := deadLetter.Requeue(ctx, id, func(ctx context.Context, jobType models.JobType, payload json.RawMessage) (string, error) {
		return "job-456", nil
	}); again != "" {
		t.Errorf("expected empty id on repeat requeue, got %q", again)
	}

	if missing := deadLetter.Requeue(ctx, "dlq_missing", func(ctx context.Context, jobType models.JobType, payload json.RawMessage) (string, error) {
		return "job-789", nil
	}); missing != "" {
		t.Errorf("expected empty id for missing entry, got %q", missing)
	}
}
