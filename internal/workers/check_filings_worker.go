// -----------------------------------------------------------------------
// CheckFilingsWorker - polls the EDGAR feed and enqueues new filings
// -----------------------------------------------------------------------

package workers

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/feed"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/queue"
)

// CheckFilingsWorker handles check_filings jobs: fetch the feed, discover
// new filings for tracked companies, and enqueue one process_filing job
// per discovery.
type CheckFilingsWorker struct {
	fetcher   interfaces.DocumentFetcher
	feedURL   string
	processor *feed.Processor
	extractor interfaces.MetadataExtractor
	queue     *queue.Service
	logger    arbor.ILogger
}

// NewCheckFilingsWorker creates a check filings worker
func NewCheckFilingsWorker(fetcher interfaces.DocumentFetcher, feedURL string, processor *feed.Processor, extractor interfaces.MetadataExtractor, queueService *queue.Service, logger arbor.ILogger) *CheckFilingsWorker {
	return &CheckFilingsWorker{
		fetcher:   fetcher,
		feedURL:   feedURL,
		processor: processor,
		extractor: extractor,
		queue:     queueService,
		logger:    logger,
	}
}

// Handle runs one feed poll
func (w *CheckFilingsWorker) Handle(ctx context.Context, job *models.Job) error {
	var payload models.CheckFilingsPayload
	if err := job.UnmarshalPayload(&payload); err != nil {
		return err
	}

	data, err := w.fetcher.Fetch(ctx, w.feedURL)
	if err != nil {
		return fmt.Errorf("feed fetch failed: %w", err)
	}

	parsed, err := feed.ParseFeed(data)
	if err != nil {
		return fmt.Errorf("feed parse failed: %w", err)
	}

	entries := parsed.Entries
	if payload.FilingType != "" {
		entries = w.filterByType(entries, models.FilingType(payload.FilingType))
	}

	result, err := w.processor.ProcessEntries(ctx, entries)
	if err != nil {
		return fmt.Errorf("feed processing failed: %w", err)
	}

	for _, filing := range result.NewFilings {
		if _, err := w.queue.Add(ctx, queue.AddJobRequest{
			Type: models.JobTypeProcessFiling,
			Payload: models.ProcessFilingPayload{
				FilingID:   filing.ID,
				FilingURL:  filing.FilingURL,
				FilingType: string(filing.FilingType),
				Ticker:     filing.Ticker,
			},
			Priority:       FilingPriority(filing.FilingType),
			IdempotencyKey: filing.Key,
		}); err != nil {
			// Enqueue failure for one filing must not drop the rest; the
			// filing is persisted and the next poll will see it as existing,
			// so surface the error for a retry of the whole check.
			return fmt.Errorf("failed to enqueue processing for filing %s: %w", filing.ID, err)
		}
	}

	w.logger.Info().
		Str("job_id", job.ID).
		Int("new", len(result.NewFilings)).
		Int("existing", len(result.ExistingFilings)).
		Int("skipped", result.Skipped).
		Msg("Feed check complete")

	return nil
}

func (w *CheckFilingsWorker) filterByType(entries []feed.Entry, formType models.FilingType) []feed.Entry {
	filtered := make([]feed.Entry, 0, len(entries))
	for _, entry := range entries {
		if w.extractor.DetermineFilingType(entry.Title) == formType {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// FilingPriority ranks form types by time sensitivity: current reports
// first, quarterly before annual, insider trades last.
func FilingPriority(formType models.FilingType) int {
	switch formType {
	case models.FilingType8K:
		return models.PriorityHigh
	case models.FilingType10Q:
		return 7
	case models.FilingType10K:
		return models.PriorityNormal
	case models.FilingTypeForm4:
		return 2
	default:
		return models.PriorityLow
	}
}
