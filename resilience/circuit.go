package resilience

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means requests pass through normally.
	StateClosed State = iota
	// StateOpen means all requests are rejected without being attempted.
	StateOpen
	// StateHalfOpen means a single probe is allowed to test recovery.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens.
	// Default: 5
	FailureThreshold int

	// Cooldown is how long the circuit stays open before allowing a
	// recovery probe.
	// Default: 30 seconds
	Cooldown time.Duration

	// Clock is the time source. Default: SystemClock().
	Clock Clock

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)
}

// CircuitBreaker tracks recent failure history and gates whether new
// attempts are allowed. A request first calls Allow, then reports its
// result with Success or Failure.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	clock  Clock

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker creates a new circuit breaker in the closed state.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.Clock == nil {
		config.Clock = SystemClock()
	}

	return &CircuitBreaker{
		config: config,
		clock:  config.Clock,
		state:  StateClosed,
	}
}

// Allow reports whether a request may proceed. It returns ErrCircuitOpen
// while the circuit is open, and while a half-open probe is already in
// flight. When the cooldown has elapsed, exactly one caller is admitted
// as the recovery probe; the admission is atomic with the state read, so
// concurrent callers cannot both become the probe.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	return nil
}

// Success records a successful attempt. While closed it resets the
// consecutive-failure count; a successful half-open probe closes the
// circuit.
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.probing = false
		cb.failures = 0
		cb.setStateLocked(StateClosed)
	}
}

// Abandon reports that an admitted attempt unwound before reaching the
// backend, typically because its context was cancelled. It releases a
// half-open probe reservation without recording an outcome, so the next
// caller can become the probe. Every Allow that does not reach Success
// or Failure must be paired with Abandon.
func (cb *CircuitBreaker) Abandon() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.probing = false
	}
}

// Failure records a failed attempt. While closed it increments the
// consecutive-failure count and opens the circuit at the threshold; a
// failed half-open probe reopens the circuit with a fresh cooldown.
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.openedAt = cb.clock.Now()
			cb.setStateLocked(StateOpen)
		}
	case StateHalfOpen:
		cb.probing = false
		cb.openedAt = cb.clock.Now()
		cb.setStateLocked(StateOpen)
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Reset returns the circuit breaker to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.probing = false
	cb.setStateLocked(StateClosed)
}

// currentStateLocked applies the lazy Open -> HalfOpen transition once the
// cooldown has elapsed.
func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && cb.clock.Now().Sub(cb.openedAt) >= cb.config.Cooldown {
		cb.probing = false
		cb.setStateLocked(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) setStateLocked(state State) {
	if cb.state == state {
		return
	}
	old := cb.state
	cb.state = state
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(old, state)
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State               State
	ConsecutiveFailures int
	OpenedAt            time.Time
}

// Metrics returns current circuit breaker statistics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		State:               cb.currentStateLocked(),
		ConsecutiveFailures: cb.failures,
		OpenedAt:            cb.openedAt,
	}
}
