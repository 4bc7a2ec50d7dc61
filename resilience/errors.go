package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a request.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrQueueClosed is returned when the queue has been shut down.
	ErrQueueClosed = errors.New("resilience: queue closed")
)
