package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
)

// DocumentStorage implements the DocumentStorage interface for Badger.
// Parsed documents are keyed by filing ID so reprocessing a filing
// replaces the previous extraction.
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStorage {
	return &DocumentStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DocumentStorage) Save(ctx context.Context, doc *models.FilingDocument) error {
	s.logger.Trace().
		Str("filing_id", doc.FilingID).
		Int("chunks", len(doc.Chunks)).
		Msg("BadgerDB: saving filing document")

	if err := s.db.Store().Upsert(doc.FilingID, *doc); err != nil {
		return fmt.Errorf("failed to save document for filing %s: %w", doc.FilingID, err)
	}
	return nil
}

func (s *DocumentStorage) Get(ctx context.Context, filingID string) (*models.FilingDocument, error) {
	var doc models.FilingDocument
	if err := s.db.Store().Get(filingID, &doc); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document for filing %s: %w", filingID, err)
	}
	return &doc, nil
}
