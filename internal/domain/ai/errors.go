package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrEmptyResponse is returned when the provider answered without choices.
var ErrEmptyResponse = errors.New("ai returned an empty response")

// ErrNotConfigured is returned by services built without a client.
var ErrNotConfigured = errors.New("ai client not configured")
