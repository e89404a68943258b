package lock

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/common"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
)

// Well-known lock names used by the background pipeline
const (
	LockJobProcessing = "job-processing"
	LockFeedCheck     = "feed-check"
	LockArchive       = "archive"
)

// Service coordinates named mutual-exclusion leases across instances.
// Each service carries a process-unique holder ID so a crashed instance
// can never be confused with a live one; its abandoned leases simply
// expire.
type Service struct {
	storage  interfaces.LockStorage
	logger   arbor.ILogger
	holderID string
	ttl      time.Duration
}

// NewService creates a lock service with a fresh holder identity
func NewService(storage interfaces.LockStorage, logger arbor.ILogger, ttl time.Duration) *Service {
	return &Service{
		storage:  storage,
		logger:   logger,
		holderID: common.NewHolderID(),
		ttl:      ttl,
	}
}

// HolderID returns this instance's lock holder identity
func (s *Service) HolderID() string {
	return s.holderID
}

// Acquire attempts to take the named lease. Contention is an expected
// outcome, not an error: the caller gets false and moves on. Storage
// failures are logged and also reported as not-acquired, so a broken
// store can never hand out two leases.
func (s *Service) Acquire(ctx context.Context, name string) bool {
	lease := models.NewLock(name, s.holderID, s.ttl)

	acquired, err := s.storage.TryAcquire(ctx, lease)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("lock", name).
			Msg("Lock acquisition failed, treating as held")
		return false
	}

	if acquired {
		s.logger.Debug().
			Str("lock", name).
			Str("holder", s.holderID).
			Str("expires_at", lease.ExpiresAt.Format(time.RFC3339)).
			Msg("Lock acquired")
	} else {
		s.logger.Debug().
			Str("lock", name).
			Msg("Lock held by another instance")
	}

	return acquired
}

// Release gives the lease back. Safe to call when the lease was never
// acquired or already expired; the release only removes a lease this
// holder owns.
func (s *Service) Release(ctx context.Context, name string) {
	if err := s.storage.Release(ctx, name, s.holderID); err != nil {
		s.logger.Warn().Err(err).
			Str("lock", name).
			Msg("Lock release failed, lease will expire on its own")
		return
	}
	s.logger.Trace().Str("lock", name).Msg("Lock released")
}
