// -----------------------------------------------------------------------
// ArchiveWorker - ages out old filings and purges handled dead letters
// -----------------------------------------------------------------------

package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/queue"
)

// DefaultArchiveAfterDays applies when the job payload does not set a window
const DefaultArchiveAfterDays = 90

// ArchiveWorker handles archive_filings jobs
type ArchiveWorker struct {
	filings       interfaces.FilingStorage
	deadLetter    *queue.DeadLetterService
	retentionDays int
	logger        arbor.ILogger
}

// NewArchiveWorker creates an archive worker. retentionDays bounds how long
// reprocessed dead letter entries are kept.
func NewArchiveWorker(filings interfaces.FilingStorage, deadLetter *queue.DeadLetterService, retentionDays int, logger arbor.ILogger) *ArchiveWorker {
	return &ArchiveWorker{
		filings:       filings,
		deadLetter:    deadLetter,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// Handle archives filings older than the window and cleans up the DLQ
func (w *ArchiveWorker) Handle(ctx context.Context, job *models.Job) error {
	var payload models.ArchiveFilingsPayload
	if err := job.UnmarshalPayload(&payload); err != nil {
		return err
	}

	olderThanDays := payload.OlderThanDays
	if olderThanDays <= 0 {
		olderThanDays = DefaultArchiveAfterDays
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	archived, err := w.filings.ArchiveOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving filings failed: %w", err)
	}

	purged := w.deadLetter.CleanupOldEntries(ctx, w.retentionDays)

	w.logger.Info().
		Str("job_id", job.ID).
		Int("archived", archived).
		Int("dlq_purged", purged).
		Int("older_than_days", olderThanDays).
		Msg("Archive pass complete")

	return nil
}
