package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
)

// LockStorage implements the LockStorage interface for Badger
type LockStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewLockStorage creates a new LockStorage instance
func NewLockStorage(db *BadgerDB, logger arbor.ILogger) interfaces.LockStorage {
	return &LockStorage{
		db:     db,
		logger: logger,
	}
}

func (s *LockStorage) TryAcquire(ctx context.Context, lock *models.Lock) (bool, error) {
	// Fast path: no row yet.
	err := s.db.Store().Insert(lock.Name, *lock)
	if err == nil {
		return true, nil
	}
	if err != badgerhold.ErrKeyExists {
		return false, fmt.Errorf("failed to insert lock %s: %w", lock.Name, err)
	}

	// A row exists. Replace it in one transaction only when the lease has
	// expired or we already hold it (re-acquire extends the lease).
	now := time.Now().UTC()
	acquired := false

	err = s.db.Store().UpdateMatching(&models.Lock{},
		badgerhold.Where(badgerhold.Key).Eq(lock.Name),
		func(record interface{}) error {
			existing, ok := record.(*models.Lock)
			if !ok {
				return fmt.Errorf("unexpected record type %T", record)
			}
			if existing.HolderID != lock.HolderID && !existing.Expired(now) {
				return nil // Held by someone else; leave it
			}
			*existing = *lock
			acquired = true
			return nil
		})
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", lock.Name, err)
	}

	return acquired, nil
}

func (s *LockStorage) Release(ctx context.Context, name, holderID string) error {
	// Only the current holder may release; anything else is a no-op.
	err := s.db.Store().DeleteMatching(&models.Lock{},
		badgerhold.Where(badgerhold.Key).Eq(name).And("HolderID").Eq(holderID))
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}

func (s *LockStorage) Get(ctx context.Context, name string) (*models.Lock, error) {
	var lock models.Lock
	if err := s.db.Store().Get(name, &lock); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lock %s: %w", name, err)
	}
	return &lock, nil
}
