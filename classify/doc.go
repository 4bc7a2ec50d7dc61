// Package classify maps raw HTTP and GraphQL results to resilience
// outcomes.
//
// The resilience executor is transport-agnostic: it only understands
// Success, Retryable, and Fatal outcomes. This package supplies the
// mapping for HTTP status codes, transport-level errors, and GraphQL
// error payloads, including backend Retry-After hints and the
// backend-specific "THROTTLED" error code.
//
// The default retryable status set is {429, 502, 503, 504, 408}; other
// 5xx statuses are also treated as retryable. 401/403 classify as
// authentication failures and 400/404/422 as validation failures, both
// fatal.
package classify
