package models

import (
	"fmt"
	"time"
)

// FilingType is one of the supported SEC form types
type FilingType string

const (
	FilingType10K   FilingType = "10-K"
	FilingType10Q   FilingType = "10-Q"
	FilingType8K    FilingType = "8-K"
	FilingTypeForm4 FilingType = "Form 4"
)

// SupportedFilingTypes lists the form types the pipeline processes, in
// match-precedence order.
var SupportedFilingTypes = []FilingType{
	FilingType10K,
	FilingType10Q,
	FilingType8K,
	FilingTypeForm4,
}

// ValidFilingType reports whether t is a supported form type
func ValidFilingType(t FilingType) bool {
	for _, ft := range SupportedFilingTypes {
		if ft == t {
			return true
		}
	}
	return false
}

// Filing is a normalized representation of one SEC filing discovered via the
// feed. Filings are unique by (CIK, form type, calendar day); re-appearance
// of the same key in the feed never re-triggers processing.
type Filing struct {
	ID          string     `badgerhold:"index" json:"id"`
	Key         string     `badgerhold:"key" json:"key"` // cik|type|day dedup key
	Ticker      string     `json:"ticker"`
	CompanyName string     `json:"company_name"`
	CIK         string     `badgerhold:"index" json:"cik"`
	FilingType  FilingType `json:"filing_type"`
	FilingDate  time.Time  `json:"filing_date"`
	FilingURL   string     `json:"filing_url"`
	Description string     `json:"description,omitempty"`
	Archived    bool       `json:"archived"`
	CreatedAt   time.Time  `json:"created_at"`
}

// FilingKey renders the day-bounded dedup key for a filing
func FilingKey(cik string, filingType FilingType, date time.Time) string {
	return fmt.Sprintf("%s|%s|%s", cik, filingType, date.UTC().Format("2006-01-02"))
}

// Company is a tracked issuer, keyed by CIK
type Company struct {
	CIK       string    `badgerhold:"key" json:"cik"`
	Ticker    string    `badgerhold:"index" json:"ticker"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
