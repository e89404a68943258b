// -----------------------------------------------------------------------
// SummarizeFilingWorker - produces AI summaries of parsed filings
// -----------------------------------------------------------------------

package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
)

// SummarizeFilingWorker handles summarize_filing jobs
type SummarizeFilingWorker struct {
	filings    interfaces.FilingStorage
	documents  interfaces.DocumentStorage
	summaries  interfaces.SummaryStorage
	summarizer interfaces.SummaryService
	logger     arbor.ILogger
}

// NewSummarizeFilingWorker creates a summarize filing worker
func NewSummarizeFilingWorker(filings interfaces.FilingStorage, documents interfaces.DocumentStorage, summaries interfaces.SummaryStorage, summarizer interfaces.SummaryService, logger arbor.ILogger) *SummarizeFilingWorker {
	return &SummarizeFilingWorker{
		filings:    filings,
		documents:  documents,
		summaries:  summaries,
		summarizer: summarizer,
		logger:     logger,
	}
}

// Handle summarizes one parsed filing
func (w *SummarizeFilingWorker) Handle(ctx context.Context, job *models.Job) error {
	// A missing API key leaves the app without a summarizer. The job stays
	// retryable so it completes once the key is configured and the process
	// restarted.
	if w.summarizer == nil {
		return fmt.Errorf("summarizer not configured")
	}

	var payload models.SummarizeFilingPayload
	if err := job.UnmarshalPayload(&payload); err != nil {
		return err
	}
	if payload.FilingID == "" {
		return fmt.Errorf("%w: summarize_filing payload missing filing id", interfaces.ErrPermanent)
	}

	filing, err := w.filings.GetByID(ctx, payload.FilingID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return fmt.Errorf("%w: filing %s does not exist", interfaces.ErrPermanent, payload.FilingID)
		}
		return fmt.Errorf("failed to load filing %s: %w", payload.FilingID, err)
	}

	doc, err := w.documents.Get(ctx, payload.FilingID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return fmt.Errorf("%w: no parsed document for filing %s", interfaces.ErrPermanent, payload.FilingID)
		}
		return fmt.Errorf("failed to load document for filing %s: %w", payload.FilingID, err)
	}

	// Summarization calls an external API; its failures retry through the
	// job attempt budget.
	summary, err := w.summarizer.Summarize(ctx, filing, doc)
	if err != nil {
		return err
	}

	if err := w.summaries.Save(ctx, summary); err != nil {
		return fmt.Errorf("failed to persist summary for filing %s: %w", payload.FilingID, err)
	}

	w.logger.Info().
		Str("job_id", job.ID).
		Str("filing_id", payload.FilingID).
		Str("summary_id", summary.ID).
		Str("ticker", filing.Ticker).
		Msg("Filing summarized")

	return nil
}
