package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewDeadLetterID generates a unique dead letter entry ID with the "dlq_" prefix
func NewDeadLetterID() string {
	return "dlq_" + uuid.New().String()
}

// NewFilingID generates a unique filing ID with the "filing_" prefix
func NewFilingID() string {
	return "filing_" + uuid.New().String()
}

// NewSummaryID generates a unique summary ID with the "sum_" prefix
func NewSummaryID() string {
	return "sum_" + uuid.New().String()
}

// NewHolderID generates an opaque process identifier used for lock ownership
func NewHolderID() string {
	return uuid.New().String()
}
