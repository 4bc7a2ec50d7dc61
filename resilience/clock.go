package resilience

import (
	"context"
	"time"
)

// Clock abstracts the time source used for refill calculations, cooldown
// checks, and backoff sleeps. Injecting a Clock makes timing behavior
// deterministic in tests.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Sleep must return early with ctx.Err() when the context is done.
type Clock interface {
	// Now returns the current instant.
	Now() time.Time

	// Sleep blocks for d or until the context is cancelled.
	Sleep(ctx context.Context, d time.Duration) error
}

// systemClock is the default wall-clock implementation.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SystemClock returns a Clock backed by the wall clock and real timers.
func SystemClock() Clock { return systemClock{} }
