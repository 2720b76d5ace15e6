package amendments

import "errors"

var (
	// ErrNotFound is returned when the amendment id is unknown.
	ErrNotFound = errors.New("amendment not found")

	// ErrInvalidInput marks caller-side validation failures.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPersistence is fatal for a use case; nothing was written.
	ErrPersistence = errors.New("persistence failure")

	// ErrEnrichmentUnavailable marks an optional source that could not answer.
	// Use cases log and swallow it.
	ErrEnrichmentUnavailable = errors.New("enrichment unavailable")
)
