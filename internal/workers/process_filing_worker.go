// -----------------------------------------------------------------------
// ProcessFilingWorker - fetches, parses, and chunks filing documents
// -----------------------------------------------------------------------

package workers

import (
	"context"
	"fmt"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/common"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/document"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/queue"
)

// ProcessFilingWorker handles process_filing jobs: fetch the document,
// extract its structure, chunk it when large, persist the result, and
// enqueue summarization.
type ProcessFilingWorker struct {
	fetcher   interfaces.DocumentFetcher
	documents interfaces.DocumentStorage
	queue     *queue.Service
	chunking  *common.ChunkingConfig
	converter *md.Converter
	logger    arbor.ILogger
}

// NewProcessFilingWorker creates a process filing worker
func NewProcessFilingWorker(fetcher interfaces.DocumentFetcher, documents interfaces.DocumentStorage, queueService *queue.Service, chunking *common.ChunkingConfig, logger arbor.ILogger) *ProcessFilingWorker {
	return &ProcessFilingWorker{
		fetcher:   fetcher,
		documents: documents,
		queue:     queueService,
		chunking:  chunking,
		converter: md.NewConverter("", true, nil),
		logger:    logger,
	}
}

// Handle fetches and parses one filing
func (w *ProcessFilingWorker) Handle(ctx context.Context, job *models.Job) error {
	var payload models.ProcessFilingPayload
	if err := job.UnmarshalPayload(&payload); err != nil {
		return err
	}
	if payload.FilingID == "" || payload.FilingURL == "" {
		return fmt.Errorf("%w: process_filing payload missing filing id or url", interfaces.ErrPermanent)
	}

	data, err := w.fetcher.Fetch(ctx, payload.FilingURL)
	if err != nil {
		return fmt.Errorf("document fetch failed for filing %s: %w", payload.FilingID, err)
	}

	// PDF filings are detected but not extractable; that error is permanent
	// and dead-letters the job.
	if _, err := document.DetectFormat(data); err != nil {
		return fmt.Errorf("filing %s: %w", payload.FilingID, err)
	}

	sections, err := document.Parse(data, document.DefaultExtractOptions())
	if err != nil {
		return fmt.Errorf("failed to parse filing %s: %w", payload.FilingID, err)
	}

	fullText := document.FullText(sections)
	if fullText == "" {
		return fmt.Errorf("%w: filing %s yielded no extractable text", interfaces.ErrPermanent, payload.FilingID)
	}

	markdown, err := w.converter.ConvertString(string(data))
	if err != nil {
		// The markdown rendition is a convenience view; extraction already
		// succeeded, so keep going without it.
		w.logger.Warn().Err(err).Str("filing_id", payload.FilingID).Msg("Markdown conversion failed")
		markdown = ""
	}

	doc := &models.FilingDocument{
		FilingID:  payload.FilingID,
		Title:     document.DocumentTitle(sections),
		FullText:  fullText,
		Markdown:  markdown,
		ParsedAt:  time.Now().UTC(),
		SourceURL: payload.FilingURL,
	}

	if len(fullText) > w.chunking.Threshold {
		chunks, err := document.ChunkText(fullText, document.ChunkConfig{
			MaxChunkSize:              w.chunking.MaxChunkSize,
			ChunkOverlap:              w.chunking.ChunkOverlap,
			RespectSemanticBoundaries: w.chunking.RespectSemanticBoundaries,
			Separator:                 w.chunking.Separator,
		})
		if err != nil {
			return fmt.Errorf("chunking failed for filing %s: %w", payload.FilingID, err)
		}
		doc.Chunks = chunks
		doc.Chunked = true
	}

	if err := w.documents.Save(ctx, doc); err != nil {
		return fmt.Errorf("failed to persist document for filing %s: %w", payload.FilingID, err)
	}

	if _, err := w.queue.Add(ctx, queue.AddJobRequest{
		Type:           models.JobTypeSummarizeFiling,
		Payload:        models.SummarizeFilingPayload{FilingID: payload.FilingID},
		Priority:       models.PriorityNormal,
		IdempotencyKey: "summarize-" + payload.FilingID,
	}); err != nil {
		return fmt.Errorf("failed to enqueue summarization for filing %s: %w", payload.FilingID, err)
	}

	w.logger.Info().
		Str("job_id", job.ID).
		Str("filing_id", payload.FilingID).
		Int("text_length", len(fullText)).
		Int("chunks", len(doc.Chunks)).
		Bool("chunked", doc.Chunked).
		Msg("Filing document processed")

	return nil
}
