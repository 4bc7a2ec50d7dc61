package resilience

import (
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures the retry policy.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first.
	// Default: 3
	MaxRetries int

	// BaseDelay is the backoff for the first retry; each further retry
	// doubles it.
	// Default: 1 second
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff.
	// Default: 30 seconds
	MaxDelay time.Duration

	// Jitter randomizes each delay by up to +/-20% to avoid synchronized
	// retry storms.
	// Default: false
	Jitter bool
}

// RetryPolicy decides whether a failed attempt should be retried and how
// long to wait first. The decision is a pure function of the attempt
// number, the classified outcome, and the operation's mutability.
type RetryPolicy struct {
	config RetryConfig
}

// NewRetryPolicy creates a new retry policy.
func NewRetryPolicy(config RetryConfig) *RetryPolicy {
	// Apply defaults
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}

	return &RetryPolicy{config: config}
}

// Decide reports whether the attempt should be retried and the delay to
// apply first. attempt is zero-based: attempt 0 is the first (initial)
// attempt. Mutating operations are never retried, because the backend
// does not guarantee exactly-once semantics on repeated writes. Fatal
// outcomes are never retried. A backend-supplied RetryAfter hint takes
// precedence over the exponential delay.
func (p *RetryPolicy) Decide(attempt int, outcome Outcome, mutating bool) (time.Duration, bool) {
	if mutating {
		return 0, false
	}
	if outcome.Kind != OutcomeRetryable {
		return 0, false
	}
	if attempt >= p.config.MaxRetries {
		return 0, false
	}
	return p.delay(attempt, outcome.RetryAfter), true
}

func (p *RetryPolicy) delay(attempt int, hint time.Duration) time.Duration {
	delay := hint
	if delay <= 0 {
		delay = time.Duration(float64(p.config.BaseDelay) * math.Pow(2, float64(attempt)))
		if p.config.Jitter {
			// +/-20%
			// #nosec G404 -- jitter is non-cryptographic timing variance.
			delay = time.Duration(float64(delay) * (0.8 + 0.4*rand.Float64()))
		}
	}
	if delay > p.config.MaxDelay {
		delay = p.config.MaxDelay
	}
	return delay
}

// Config returns the retry configuration.
func (p *RetryPolicy) Config() RetryConfig {
	return p.config
}
