package interfaces

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrStatusConflict is returned when a conditional job write loses to a
	// concurrent writer: someone else already claimed the job.
	ErrStatusConflict = errors.New("job status conflict")

	// ErrDuplicateKey is returned when inserting a record whose key exists
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrPermanent marks a job failure that retrying cannot fix, such as an
	// unsupported document format. Jobs failing with it skip the retry
	// budget and dead-letter immediately.
	ErrPermanent = errors.New("permanent failure")
)
