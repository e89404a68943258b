package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
)

// SummaryStorage implements the SummaryStorage interface for Badger
type SummaryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSummaryStorage creates a new SummaryStorage instance
func NewSummaryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SummaryStorage {
	return &SummaryStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SummaryStorage) Save(ctx context.Context, summary *models.Summary) error {
	s.logger.Trace().
		Str("summary_id", summary.ID).
		Str("filing_id", summary.FilingID).
		Msg("BadgerDB: saving summary")

	if err := s.db.Store().Upsert(summary.FilingID, *summary); err != nil {
		return fmt.Errorf("failed to save summary for filing %s: %w", summary.FilingID, err)
	}
	return nil
}

func (s *SummaryStorage) GetByFilingID(ctx context.Context, filingID string) (*models.Summary, error) {
	var summary models.Summary
	if err := s.db.Store().Get(filingID, &summary); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get summary for filing %s: %w", filingID, err)
	}
	return &summary, nil
}
