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

// DeadLetterStorage implements the DeadLetterStorage interface for Badger
type DeadLetterStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDeadLetterStorage creates a new DeadLetterStorage instance
func NewDeadLetterStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DeadLetterStorage {
	return &DeadLetterStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DeadLetterStorage) Insert(ctx context.Context, entry *models.DeadLetterEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("dead letter entry ID is required")
	}

	s.logger.Trace().
		Str("dlq_id", entry.ID).
		Str("original_job_id", entry.OriginalJobID).
		Msg("BadgerDB: inserting dead letter entry")

	if err := s.db.Store().Insert(entry.ID, *entry); err != nil {
		return fmt.Errorf("failed to insert dead letter entry: %w", err)
	}
	return nil
}

func (s *DeadLetterStorage) Get(ctx context.Context, id string) (*models.DeadLetterEntry, error) {
	var entry models.DeadLetterEntry
	if err := s.db.Store().Get(id, &entry); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dead letter entry %s: %w", id, err)
	}
	return &entry, nil
}

func (s *DeadLetterStorage) List(ctx context.Context, limit, offset int, includeReprocessed bool) ([]*models.DeadLetterEntry, error) {
	var entries []models.DeadLetterEntry

	var query *badgerhold.Query
	if !includeReprocessed {
		query = badgerhold.Where("Reprocessed").Eq(false).Index("Reprocessed")
	}

	if err := s.db.Store().Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to list dead letter entries: %w", err)
	}

	// Newest first
	sort.Slice(entries, func(a, b int) bool {
		return entries[a].CreatedAt.After(entries[b].CreatedAt)
	})

	result := make([]*models.DeadLetterEntry, 0, len(entries))
	for i := range entries {
		result = append(result, &entries[i])
	}

	if offset > 0 {
		if offset >= len(result) {
			return []*models.DeadLetterEntry{}, nil
		}
		result = result[offset:]
	}
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}

	return result, nil
}

func (s *DeadLetterStorage) Count(ctx context.Context, includeReprocessed bool) (int, error) {
	var query *badgerhold.Query
	if !includeReprocessed {
		query = badgerhold.Where("Reprocessed").Eq(false).Index("Reprocessed")
	}

	count, err := s.db.Store().Count(&models.DeadLetterEntry{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count dead letter entries: %w", err)
	}
	return int(count), nil
}

func (s *DeadLetterStorage) MarkReprocessed(ctx context.Context, id string) (bool, error) {
	marked := false

	err := s.db.Store().UpdateMatching(&models.DeadLetterEntry{},
		badgerhold.Where(badgerhold.Key).Eq(id).And("Reprocessed").Eq(false),
		func(record interface{}) error {
			entry, ok := record.(*models.DeadLetterEntry)
			if !ok {
				return fmt.Errorf("unexpected record type %T", record)
			}
			marked = entry.MarkReprocessed()
			return nil
		})
	if err != nil {
		return false, fmt.Errorf("failed to mark dead letter entry %s: %w", id, err)
	}

	return marked, nil
}

func (s *DeadLetterStorage) DeleteReprocessedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var entries []models.DeadLetterEntry
	if err := s.db.Store().Find(&entries, badgerhold.Where("Reprocessed").Eq(true).Index("Reprocessed")); err != nil {
		return 0, fmt.Errorf("failed to find reprocessed entries: %w", err)
	}

	deleted := 0
	for _, entry := range entries {
		if entry.ProcessedAt == nil || !entry.ProcessedAt.Before(cutoff) {
			continue
		}
		if err := s.db.Store().Delete(entry.ID, &models.DeadLetterEntry{}); err != nil && err != badgerhold.ErrNotFound {
			s.logger.Warn().Err(err).Str("dlq_id", entry.ID).Msg("Failed to delete dead letter entry")
			continue
		}
		deleted++
	}

	return deleted, nil
}
