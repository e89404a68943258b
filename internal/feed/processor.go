package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/common"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
)

// ProcessResult reports one batch of feed entries
type ProcessResult struct {
	NewFilings      []*models.Filing
	ExistingFilings []*models.Filing
	Skipped         int
}

// Processor turns raw feed entries into persisted filings. Entries for
// untracked companies or unsupported forms are skipped, and one entry's
// failure never aborts the rest of the batch.
type Processor struct {
	companies interfaces.CompanyStorage
	filings   interfaces.FilingStorage
	extractor interfaces.MetadataExtractor
	logger    arbor.ILogger
}

// NewProcessor creates a feed processor
func NewProcessor(companies interfaces.CompanyStorage, filings interfaces.FilingStorage, extractor interfaces.MetadataExtractor, logger arbor.ILogger) *Processor {
	return &Processor{
		companies: companies,
		filings:   filings,
		extractor: extractor,
		logger:    logger,
	}
}

// ProcessEntries classifies each entry as a new filing, a same-day
// duplicate of a known filing, or a skip.
func (p *Processor) ProcessEntries(ctx context.Context, entries []Entry) (*ProcessResult, error) {
	result := &ProcessResult{}

	for i := range entries {
		filing, existing, err := p.processEntry(ctx, &entries[i])
		if err != nil {
			p.logger.Warn().Err(err).
				Str("entry_id", entries[i].ID).
				Str("title", entries[i].Title).
				Msg("Feed entry failed, continuing batch")
			result.Skipped++
			continue
		}
		if filing == nil {
			result.Skipped++
			continue
		}
		if existing {
			result.ExistingFilings = append(result.ExistingFilings, filing)
		} else {
			result.NewFilings = append(result.NewFilings, filing)
		}
	}

	p.logger.Info().
		Int("new", len(result.NewFilings)).
		Int("existing", len(result.ExistingFilings)).
		Int("skipped", result.Skipped).
		Msg("Feed entries processed")

	return result, nil
}

// processEntry returns (nil, false, nil) for a clean skip, (filing, true,
// nil) for a known same-day filing, and (filing, false, nil) for a new one.
func (p *Processor) processEntry(ctx context.Context, entry *Entry) (*models.Filing, bool, error) {
	formType := p.extractor.DetermineFilingType(entry.Title)
	if formType == "" {
		p.logger.Trace().Str("title", entry.Title).Msg("Unsupported form type, skipping")
		return nil, false, nil
	}

	cik := p.extractor.ExtractCIK(entry.Title, entry.Link)
	if cik == "" {
		p.logger.Trace().Str("title", entry.Title).Msg("No CIK in entry, skipping")
		return nil, false, nil
	}

	company, err := p.companies.GetByCIK(ctx, cik)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			p.logger.Trace().Str("cik", cik).Msg("Untracked company, skipping")
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("company lookup failed for CIK %s: %w", cik, err)
	}

	filedAt := entry.Updated
	if filedAt.IsZero() {
		filedAt = time.Now().UTC()
	}

	key := models.FilingKey(cik, formType, filedAt)
	known, err := p.filings.FindByKey(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("filing lookup failed for key %s: %w", key, err)
	}
	if known != nil {
		return known, true, nil
	}

	name := p.extractor.ExtractCompanyName(entry.Title)
	if name == "" {
		name = company.Name
	}

	filing := &models.Filing{
		ID:          common.NewFilingID(),
		Key:         key,
		Ticker:      company.Ticker,
		CompanyName: name,
		CIK:         cik,
		FilingType:  formType,
		FilingDate:  filedAt,
		FilingURL:   entry.Link,
		Description: entry.Summary,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.filings.Save(ctx, filing); err != nil {
		return nil, false, fmt.Errorf("failed to persist filing %s: %w", key, err)
	}

	p.logger.Info().
		Str("filing_id", filing.ID).
		Str("ticker", filing.Ticker).
		Str("form", string(formType)).
		Msg("New filing discovered")

	return filing, false, nil
}
