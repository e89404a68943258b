package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
)

func TestTitleExtractor_ExtractTicker(t *testing.T) {
	e := NewTitleExtractor()

	assert.Equal(t, "TSLA", e.ExtractTicker("Tesla, Inc. (TSLA) files 10-K"))
	assert.Equal(t, "A", e.ExtractTicker("Agilent (A) current report"))
	assert.Equal(t, "", e.ExtractTicker("10-K - TESLA INC (0001318605) (Filer)"))
	assert.Equal(t, "", e.ExtractTicker(""))
}

func TestTitleExtractor_DetermineFilingType(t *testing.T) {
	e := NewTitleExtractor()

	tests := []struct {
		title string
		want  models.FilingType
	}{
		{"10-K - TESLA INC (0001318605) (Filer)", models.FilingType10K},
		{"10-Q - Apple Inc. (0000320193) (Filer)", models.FilingType10Q},
		{"8-K - MICROSOFT CORP (0000789019) (Filer)", models.FilingType8K},
		{"Form 4 - Musk Elon (0001494730) (Reporting)", models.FilingTypeForm4},
		{"S-1 - Some Startup (0009999999) (Filer)", ""},
		{"", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, e.DetermineFilingType(tc.title), "title %q", tc.title)
	}
}

func TestTitleExtractor_ExtractCompanyName(t *testing.T) {
	e := NewTitleExtractor()

	assert.Equal(t, "TESLA INC", e.ExtractCompanyName("10-K - TESLA INC (0001318605) (Filer)"))
	assert.Equal(t, "Apple Inc.", e.ExtractCompanyName("10-Q - Apple Inc. (0000320193) (Filer)"))
	assert.Equal(t, "", e.ExtractCompanyName("a title without the template"))
}

func TestTitleExtractor_ExtractCIK(t *testing.T) {
	e := NewTitleExtractor()

	// Link parameter wins over the title
	assert.Equal(t, "1318605", e.ExtractCIK(
		"10-K - TESLA INC (0000320193) (Filer)",
		"https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany&CIK=0001318605"))

	// Title fallback, leading zeros stripped
	assert.Equal(t, "1318605", e.ExtractCIK("10-K - TESLA INC (0001318605) (Filer)", ""))

	assert.Equal(t, "", e.ExtractCIK("no digits here", "https://example.com/"))
}
