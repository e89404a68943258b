package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/common"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
	badgerstorage "github.com/wilfred-py/tldrsec-ai-sub003/internal/storage/badger"
)

func newTestProcessor(t *testing.T) (*Processor, interfaces.StorageManager) {
	t.Helper()

	manager, err := badgerstorage.NewManager(common.GetLogger(), &common.BadgerConfig{
		Path: t.TempDir() + "/badger",
	})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	processor := NewProcessor(manager.CompanyStorage(), manager.FilingStorage(),
		NewTitleExtractor(), common.GetLogger())
	return processor, manager
}

func seedCompany(t *testing.T, storage interfaces.CompanyStorage, cik, ticker, name string) {
	t.Helper()
	require.NoError(t, storage.Upsert(context.Background(), &models.Company{
		CIK:       cik,
		Ticker:    ticker,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}))
}

func TestProcessor_NewFilingForTrackedCompany(t *testing.T) {
	processor, storage := newTestProcessor(t)
	ctx := context.Background()

	seedCompany(t, storage.CompanyStorage(), "1318605", "TSLA", "Tesla, Inc.")

	entries := []Entry{{
		ID:      "entry-1",
		Title:   "10-K - TESLA INC (0001318605)",
		Link:    "https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany&CIK=0001318605",
		Updated: time.Now().UTC(),
	}}

	result, err := processor.ProcessEntries(ctx, entries)
	require.NoError(t, err)

	require.Len(t, result.NewFilings, 1)
	assert.Empty(t, result.ExistingFilings)

	filing := result.NewFilings[0]
	assert.Equal(t, "TSLA", filing.Ticker)
	assert.Equal(t, models.FilingType10K, filing.FilingType)
	assert.Equal(t, "1318605", filing.CIK)
	assert.Equal(t, "TESLA INC", filing.CompanyName)
}

func TestProcessor_SameDayDuplicateIsExisting(t *testing.T) {
	processor, storage := newTestProcessor(t)
	ctx := context.Background()

	seedCompany(t, storage.CompanyStorage(), "1318605", "TSLA", "Tesla, Inc.")

	morning := time.Date(2026, 2, 10, 9, 15, 0, 0, time.UTC)
	afternoon := time.Date(2026, 2, 10, 16, 40, 0, 0, time.UTC)
	entries := []Entry{
		{
			ID:      "entry-1",
			Title:   "10-K - TESLA INC (0001318605)",
			Link:    "https://www.sec.gov/filing/tsla-10k",
			Updated: morning,
		},
		{
			ID:      "entry-2",
			Title:   "10-K - TESLA INC (0001318605)",
			Link:    "https://www.sec.gov/filing/tsla-10k-amended",
			Updated: afternoon,
		},
	}

	result, err := processor.ProcessEntries(ctx, entries)
	require.NoError(t, err)

	assert.Len(t, result.NewFilings, 1)
	assert.Len(t, result.ExistingFilings, 1)
	assert.Equal(t, result.NewFilings[0].ID, result.ExistingFilings[0].ID)
}

func TestProcessor_SkipsUntrackedAndUnsupported(t *testing.T) {
	processor, storage := newTestProcessor(t)
	ctx := context.Background()

	seedCompany(t, storage.CompanyStorage(), "1318605", "TSLA", "Tesla, Inc.")

	entries := []Entry{
		// Untracked company
		{
			ID:      "entry-1",
			Title:   "10-K - OBSCURE HOLDINGS (0009999999)",
			Link:    "https://www.sec.gov/filing/obscure",
			Updated: time.Now().UTC(),
		},
		// Unsupported form
		{
			ID:      "entry-2",
			Title:   "S-1 - TESLA INC (0001318605)",
			Link:    "https://www.sec.gov/filing/tsla-s1",
			Updated: time.Now().UTC(),
		},
		// No CIK anywhere
		{
			ID:      "entry-3",
			Title:   "10-K filing without identifiers",
			Link:    "https://www.sec.gov/filing/unknown",
			Updated: time.Now().UTC(),
		},
	}

	result, err := processor.ProcessEntries(ctx, entries)
	require.NoError(t, err)

	assert.Empty(t, result.NewFilings)
	assert.Empty(t, result.ExistingFilings)
	assert.Equal(t, 3, result.Skipped)
}

func TestProcessor_EndToEndFeedBatch(t *testing.T) {
	processor, storage := newTestProcessor(t)
	ctx := context.Background()

	seedCompany(t, storage.CompanyStorage(), "1318605", "TSLA", "Tesla, Inc.")

	today := time.Now().UTC().Format("2006-01-02")
	doc := `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>urn:tag:sec.gov,2008:accession-number=0001318605-26-000011</id>
    <title>10-K - TESLA INC (0001318605)</title>
    <link href="https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany&amp;CIK=0001318605"/>
    <updated>` + today + `T14:30:00Z</updated>
  </entry>
</feed>`

	parsed, err := ParseFeed([]byte(doc))
	require.NoError(t, err)

	result, err := processor.ProcessEntries(ctx, parsed.Entries)
	require.NoError(t, err)

	require.Len(t, result.NewFilings, 1)
	assert.Empty(t, result.ExistingFilings)
	assert.Equal(t, "TSLA", result.NewFilings[0].Ticker)
	assert.Equal(t, models.FilingType10K, result.NewFilings[0].FilingType)
}
