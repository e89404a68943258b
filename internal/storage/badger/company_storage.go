package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
)

// CompanyStorage implements the CompanyStorage interface for Badger
type CompanyStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCompanyStorage creates a new CompanyStorage instance
func NewCompanyStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CompanyStorage {
	return &CompanyStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CompanyStorage) Upsert(ctx context.Context, company *models.Company) error {
	s.logger.Trace().
		Str("cik", company.CIK).
		Str("ticker", company.Ticker).
		Msg("BadgerDB: upserting company")

	if err := s.db.Store().Upsert(company.CIK, *company); err != nil {
		return fmt.Errorf("failed to upsert company %s: %w", company.CIK, err)
	}
	return nil
}

func (s *CompanyStorage) GetByCIK(ctx context.Context, cik string) (*models.Company, error) {
	var company models.Company
	if err := s.db.Store().Get(cik, &company); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get company %s: %w", cik, err)
	}
	return &company, nil
}

func (s *CompanyStorage) List(ctx context.Context) ([]*models.Company, error) {
	var companies []models.Company
	if err := s.db.Store().Find(&companies, nil); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	sort.Slice(companies, func(a, b int) bool {
		return companies[a].Ticker < companies[b].Ticker
	})

	result := make([]*models.Company, 0, len(companies))
	for i := range companies {
		result = append(result, &companies[i])
	}
	return result, nil
}
