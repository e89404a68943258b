package badger

import (
	"context"
	"testing"
	"time"

	"github.com/wilfred-py/tldrsec-ai-sub003/internal/common"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
)

func TestLockStorage_AcquireAndContention(t *testing.T) {
	db := newTestDB(t)
	storage := NewLockStorage(db, common.GetLogger())
	ctx := context.Background()

	first := models.NewLock("job-processing", "holder-a", 5*time.Minute)
	ok, err := storage.TryAcquire(ctx, first)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}

	// A different holder cannot take a live lease
	second := models.NewLock("job-processing", "holder-b", 5*time.Minute)
	ok, err = storage.TryAcquire(ctx, second)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if ok {
		t.Error("expected second acquire to be refused while lease is live")
	}

	// The same holder re-acquiring extends its own lease
	extended := models.NewLock("job-processing", "holder-a", 10*time.Minute)
	ok, err = storage.TryAcquire(ctx, extended)
	if err != nil {
		t.Fatalf("re-acquire failed: %v", err)
	}
	if !ok {
		t.Error("expected holder to re-acquire its own lease")
	}

	got, err := storage.Get(ctx, "job-processing")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.HolderID != "holder-a" {
		t.Errorf("expected holder-a, got %s", got.HolderID)
	}
}

func TestLockStorage_ExpiredLeaseIsReclaimable(t *testing.T) {
	db := newTestDB(t)
	storage := NewLockStorage(db, common.GetLogger())
	ctx := context.Background()

	stale := models.NewLock("feed-check", "holder-a", 5*time.Minute)
	stale.AcquiredAt = time.Now().UTC().Add(-10 * time.Minute)
	stale.ExpiresAt = time.Now().UTC().Add(-5 * time.Minute)
	ok, err := storage.TryAcquire(ctx, stale)
	if err != nil || !ok {
		t.Fatalf("seeding stale lease failed: ok=%v err=%v", ok, err)
	}

	fresh := models.NewLock("feed-check", "holder-b", 5*time.Minute)
	ok, err = storage.TryAcquire(ctx, fresh)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !ok {
		t.Fatal("expected expired lease to be reclaimable")
	}

	got, err := storage.Get(ctx, "feed-check")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.HolderID != "holder-b" {
		t.Errorf("expected holder-b after reclaim, got %s", got.HolderID)
	}
}

func TestLockStorage_ReleaseIsHolderScoped(t *testing.T) {
	db := newTestDB(t)
	storage := NewLockStorage(db, common.GetLogger())
	ctx := context.Background()

	lock := models.NewLock("archive", "holder-a", 5*time.Minute)
	if ok, err := storage.TryAcquire(ctx, lock); err != nil || !ok {
		t.Fatalf("acquire failed: ok=%v err=%v", ok, err)
	}

	// Releasing with the wrong holder is a no-op
	if err := storage.Release(ctx, "archive", "holder-b"); err != nil {
		t.Fatalf("release by non-holder returned error: %v", err)
	}
	if got, err := storage.Get(ctx, "archive"); err != nil || got == nil {
		t.Fatalf("expected lease to survive foreign release: %v", err)
	}

	if err := storage.Release(ctx, "archive", "holder-a"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if got, _ := storage.Get(ctx, "archive"); got != nil {
		t.Error("expected lease to be removed after release")
	}

	// Releasing an already-released lock stays silent
	if err := storage.Release(ctx, "archive", "holder-a"); err != nil {
		t.Fatalf("double release returned error: %v", err)
	}
}
