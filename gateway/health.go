package gateway

import (
	"time"

	"github.com/jonwraymond/apiguard/resilience"
)

// Status represents the health of a backend connection.
type Status int

const (
	// StatusHealthy indicates the backend is accepting requests normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates recent failures or a recovery probe in
	// progress.
	StatusDegraded
	// StatusUnhealthy indicates the circuit is open and the backend is
	// temporarily disabled.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Health is a point-in-time snapshot of the client's pipeline state.
type Health struct {
	// Status summarizes the backend connection.
	Status Status

	// Breaker is the circuit breaker state.
	Breaker resilience.State

	// ConsecutiveFailures is the breaker's current failure streak.
	ConsecutiveFailures int

	// QueueDepth is the number of requests waiting for a turn.
	QueueDepth int

	// TokensAvailable is the rate limiter's current credit count.
	TokensAvailable float64

	// CheckedAt is when the snapshot was taken.
	CheckedAt time.Time
}

// Health reports the current state of this client's resilience pipeline.
func (c *Client) Health() Health {
	breaker := c.exec.Breaker().Metrics()

	h := Health{
		Breaker:             breaker.State,
		ConsecutiveFailures: breaker.ConsecutiveFailures,
		QueueDepth:          c.exec.Queue().Waiting(),
		TokensAvailable:     c.exec.Bucket().Tokens(),
		CheckedAt:           time.Now(),
	}

	switch {
	case breaker.State == resilience.StateOpen:
		h.Status = StatusUnhealthy
	case breaker.State == resilience.StateHalfOpen || breaker.ConsecutiveFailures > 0:
		h.Status = StatusDegraded
	default:
		h.Status = StatusHealthy
	}
	return h
}
