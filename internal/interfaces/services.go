package interfaces

import (
	"context"

	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
)

// SummaryService produces an AI summary for a parsed filing document
type SummaryService interface {
	Summarize(ctx context.Context, filing *models.Filing, doc *models.FilingDocument) (*models.Summary, error)
}

// DocumentFetcher retrieves raw bytes from an external URL
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// SchedulerService manages cron-driven background work
type SchedulerService interface {
	Start() error
	Stop() error
	IsRunning() bool
}

// MetadataExtractor derives filing metadata from feed entry text. It is an
// interface so a structured feed source can replace the regex heuristics
// without touching the queue or processor.
type MetadataExtractor interface {
	ExtractTicker(title string) string
	DetermineFilingType(title string) models.FilingType
	ExtractCompanyName(title string) string
	ExtractCIK(title, link string) string
}
