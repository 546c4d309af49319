// Package apperr defines the sentinel errors shared across the application.
package apperr

import "errors"

var (
	// ErrNotFound marks a topic that does not exist on the server, either
	// because it was never created or because it has been deleted.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized marks rejected credentials or missing write permission.
	// It is fatal: the run aborts before any further mutation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited marks a 429 response that survived the retry budget.
	ErrRateLimited = errors.New("rate limited")

	// ErrMalformedTable marks a navigation table that could not be parsed
	// unambiguously. Callers treat the table as absent and continue.
	ErrMalformedTable = errors.New("malformed navigation table")
)
