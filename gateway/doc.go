// Package gateway provides a per-backend API client built on the
// resilience executor.
//
// Each Client owns the queue, token bucket, and circuit breaker for one
// backend target; addressing multiple backends (multi-tenant setups)
// means constructing one Client per target, never sharing state between
// them. REST reads go through the retry pipeline; writes and GraphQL
// mutations are marked mutating and attempted at most once.
package gateway
