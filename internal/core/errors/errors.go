// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - Unexported errors (err*): Use for internal package errors
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Report contract errors.
var (
	// ErrMissingInnerID indicates a cluster without the inner id used to join evaluations.
	ErrMissingInnerID = errors.New("cluster has no inner id")

	// ErrReportNotFound indicates the upstream report does not exist.
	ErrReportNotFound = errors.New("report not found")

	// ErrInvalidLevel indicates a hierarchy level below 1.
	ErrInvalidLevel = errors.New("invalid cluster level")
)

// Scoring configuration errors.
var (
	// ErrInvalidThresholds indicates tier thresholds that are missing or not strictly ascending.
	ErrInvalidThresholds = errors.New("invalid tier thresholds")

	// ErrUnknownSpace indicates a cohesion space other than reduced or raw.
	ErrUnknownSpace = errors.New("unknown cohesion space")
)

// Upstream transport errors.
var (
	// ErrHTTPStatusNotOK indicates an upstream response with a non-2xx status code.
	ErrHTTPStatusNotOK = errors.New("HTTP status not OK")

	// ErrDocumentNotFound indicates an evaluation document the upstream has not produced yet.
	ErrDocumentNotFound = errors.New("evaluation document not found")

	// ErrUnauthorized indicates the upstream rejected the API key.
	ErrUnauthorized = errors.New("unauthorized")
)

// Validation errors.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")
)

// Cache errors.
var (
	// ErrCacheNotFound indicates a cache entry was not found.
	ErrCacheNotFound = errors.New("cache entry not found")

	// ErrCacheExpired indicates a cache entry has expired.
	ErrCacheExpired = errors.New("cache entry expired")
)

// Storage errors.
var (
	// ErrSnapshotsDisabled indicates snapshot history was requested without a database.
	ErrSnapshotsDisabled = errors.New("snapshot history disabled")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
