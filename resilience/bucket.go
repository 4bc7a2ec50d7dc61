package resilience

import (
	"context"
	"sync"
	"time"
)

// TokenBucketConfig configures the token bucket.
type TokenBucketConfig struct {
	// Capacity is the maximum number of credits (burst size).
	// Default: 100
	Capacity float64

	// RefillRate is the number of credits added per second, typically
	// Capacity / windowSeconds.
	// Default: Capacity / 10
	RefillRate float64

	// Clock is the time source. Default: SystemClock().
	Clock Clock
}

// TokenBucket enforces an average request rate without hard-walling
// bursts. Credits refill lazily from elapsed time on each acquisition,
// never via a background timer, so the bucket is correct after arbitrary
// idle periods.
type TokenBucket struct {
	config TokenBucketConfig
	clock  Clock

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucket creates a new token bucket, initially full.
func NewTokenBucket(config TokenBucketConfig) *TokenBucket {
	// Apply defaults
	if config.Capacity <= 0 {
		config.Capacity = 100
	}
	if config.RefillRate <= 0 {
		config.RefillRate = config.Capacity / 10
	}
	if config.Clock == nil {
		config.Clock = SystemClock()
	}

	return &TokenBucket{
		config:     config,
		clock:      config.Clock,
		tokens:     config.Capacity,
		lastRefill: config.Clock.Now(),
	}
}

// Acquire consumes one credit, suspending the caller until a credit is
// available or the context is cancelled. It never fails except on
// cancellation.
func (tb *TokenBucket) Acquire(ctx context.Context) error {
	for {
		wait := tb.take()
		if wait == 0 {
			return nil
		}
		if err := tb.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// take attempts to consume one credit. It returns 0 on success, otherwise
// the time until the next integral credit becomes available.
func (tb *TokenBucket) take() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= 1 {
		tb.tokens--
		return 0
	}

	needed := 1 - tb.tokens
	return time.Duration(needed / tb.config.RefillRate * float64(time.Second))
}

func (tb *TokenBucket) refillLocked() {
	now := tb.clock.Now()
	elapsed := now.Sub(tb.lastRefill)
	tb.lastRefill = now

	tb.tokens += elapsed.Seconds() * tb.config.RefillRate
	if tb.tokens > tb.config.Capacity {
		tb.tokens = tb.config.Capacity
	}
}

// Tokens returns the current number of available credits.
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refillLocked()
	return tb.tokens
}
