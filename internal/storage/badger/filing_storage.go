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

// FilingStorage implements the FilingStorage interface for Badger.
// Filings are keyed by the cik|type|day dedup key so the day-bounded
// uniqueness constraint is enforced by the store itself.
type FilingStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewFilingStorage creates a new FilingStorage instance
func NewFilingStorage(db *BadgerDB, logger arbor.ILogger) interfaces.FilingStorage {
	return &FilingStorage{
		db:     db,
		logger: logger,
	}
}

func (s *FilingStorage) Save(ctx context.Context, filing *models.Filing) error {
	if filing.Key == "" {
		filing.Key = models.FilingKey(filing.CIK, filing.FilingType, filing.FilingDate)
	}

	s.logger.Trace().
		Str("filing_id", filing.ID).
		Str("key", filing.Key).
		Msg("BadgerDB: saving filing")

	if err := s.db.Store().Upsert(filing.Key, *filing); err != nil {
		return fmt.Errorf("failed to save filing: %w", err)
	}
	return nil
}

func (s *FilingStorage) GetByID(ctx context.Context, id string) (*models.Filing, error) {
	var filings []models.Filing
	if err := s.db.Store().Find(&filings, badgerhold.Where("ID").Eq(id).Index("ID")); err != nil {
		return nil, fmt.Errorf("failed to find filing %s: %w", id, err)
	}
	if len(filings) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &filings[0], nil
}

func (s *FilingStorage) FindByKey(ctx context.Context, key string) (*models.Filing, error) {
	var filing models.Filing
	if err := s.db.Store().Get(key, &filing); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get filing by key %s: %w", key, err)
	}
	return &filing, nil
}

func (s *FilingStorage) ListRecent(ctx context.Context, limit int) ([]*models.Filing, error) {
	var filings []models.Filing
	if err := s.db.Store().Find(&filings, nil); err != nil {
		return nil, fmt.Errorf("failed to list filings: %w", err)
	}

	sort.Slice(filings, func(a, b int) bool {
		return filings[a].FilingDate.After(filings[b].FilingDate)
	})

	result := make([]*models.Filing, 0, len(filings))
	for i := range filings {
		result = append(result, &filings[i])
	}
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (s *FilingStorage) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	archived := 0

	err := s.db.Store().UpdateMatching(&models.Filing{},
		badgerhold.Where("Archived").Eq(false),
		func(record interface{}) error {
			filing, ok := record.(*models.Filing)
			if !ok {
				return fmt.Errorf("unexpected record type %T", record)
			}
			if filing.FilingDate.Before(cutoff) {
				filing.Archived = true
				archived++
			}
			return nil
		})
	if err != nil {
		return 0, fmt.Errorf("failed to archive filings: %w", err)
	}

	return archived, nil
}
