package feed

import (
	"regexp"
	"strings"

	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
)

// Title shapes seen in SEC EDGAR feeds:
//
//	"10-K - TESLA INC (0001318605) (Filer)"
//	"4 - Musk Elon (0001494730) (Reporting)"
var (
	tickerPattern  = regexp.MustCompile(`\(([A-Z]{1,5})\)`)
	companyPattern = regexp.MustCompile(`^\s*.+? - (.+?)\s*\(\d{4,10}\)`)
	cikLinkPattern = regexp.MustCompile(`[?&]CIK=(\d+)`)
	cikTitlePattern = regexp.MustCompile(`\((\d{4,10})\)`)
)

// TitleExtractor derives filing metadata from EDGAR title and link text.
// The heuristics are regex-driven; swapping in a structured source only
// means providing another MetadataExtractor.
type TitleExtractor struct{}

// NewTitleExtractor creates the regex-based metadata extractor
func NewTitleExtractor() interfaces.MetadataExtractor {
	return &TitleExtractor{}
}

// ExtractTicker returns the first parenthesized uppercase token, or ""
func (e *TitleExtractor) ExtractTicker(title string) string {
	match := tickerPattern.FindStringSubmatch(title)
	if match == nil {
		return ""
	}
	return match[1]
}

// DetermineFilingType matches the title against the supported form types.
// Returns "" for forms the pipeline does not track.
func (e *TitleExtractor) DetermineFilingType(title string) models.FilingType {
	for _, formType := range models.SupportedFilingTypes {
		if strings.Contains(title, string(formType)) {
			return formType
		}
	}
	return ""
}

// ExtractCompanyName returns the issuer name from a "<form> - <name> (<cik>)"
// title, or "" when the title does not match that template
func (e *TitleExtractor) ExtractCompanyName(title string) string {
	match := companyPattern.FindStringSubmatch(title)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// ExtractCIK returns the issuer CIK from a CIK= link parameter, falling
// back to the parenthesized digit group in the title. Leading zeros are
// stripped so feed and seed-file spellings compare equal.
func (e *TitleExtractor) ExtractCIK(title, link string) string {
	if match := cikLinkPattern.FindStringSubmatch(link); match != nil {
		return normalizeCIK(match[1])
	}
	if match := cikTitlePattern.FindStringSubmatch(title); match != nil {
		return normalizeCIK(match[1])
	}
	return ""
}

func normalizeCIK(cik string) string {
	trimmed := strings.TrimLeft(cik, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// NormalizeCIK canonicalizes a CIK for storage lookups
func NormalizeCIK(cik string) string {
	return normalizeCIK(cik)
}
