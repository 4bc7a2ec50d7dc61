package observe

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonwraymond/apiguard/resilience"
)

// RequestFunc is the signature of a logical backend request.
type RequestFunc func(ctx context.Context) error

// Middleware instruments the request pipeline of one backend target with
// tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: all returned hooks and wrapped functions are safe for
//     concurrent use.
//   - Context: Wrap propagates context through tracing spans.
//   - Errors: errors from the wrapped function are recorded and propagated
//     unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  zerolog.Logger
	meta    TargetMeta
}

// NewMiddleware creates a Middleware from explicit telemetry components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger zerolog.Logger, meta TargetMeta) *Middleware {
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  WithTarget(logger, meta),
		meta:    meta,
	}
}

// FromObserver creates a Middleware for one backend target from an Observer.
func FromObserver(obs Observer, meta TargetMeta) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	if meta.Backend == "" {
		return nil, ErrMissingBackend
	}

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(newTracer(obs.Tracer()), metrics, obs.Logger(), meta), nil
}

// NoopMiddleware returns a middleware whose hooks discard everything.
// Useful as a default when no observer is configured.
func NoopMiddleware(meta TargetMeta) *Middleware {
	return NewMiddleware(newNoopTracer(), &noopMetrics{}, zerolog.Nop(), meta)
}

// Wrap wraps a logical request with a client span covering every attempt,
// including backoff waits.
func (m *Middleware) Wrap(fn RequestFunc) RequestFunc {
	return func(ctx context.Context) error {
		ctx, span := m.tracer.StartSpan(ctx, m.meta)

		start := time.Now()
		err := fn(ctx)
		duration := time.Since(start)

		m.tracer.EndSpan(span, err)

		if err != nil {
			m.logger.Error().
				Dur("duration", duration).
				Err(err).
				Msg("request failed")
		} else {
			m.logger.Debug().
				Dur("duration", duration).
				Msg("request completed")
		}

		return err
	}
}

// Instrument attaches the middleware's attempt and retry hooks to an
// executor configuration, chaining any hooks already present.
func (m *Middleware) Instrument(cfg *resilience.ExecutorConfig) {
	prevAttempt := cfg.OnAttempt
	onAttempt := m.OnAttempt()
	cfg.OnAttempt = func(outcome resilience.Outcome, elapsed time.Duration) {
		onAttempt(outcome, elapsed)
		if prevAttempt != nil {
			prevAttempt(outcome, elapsed)
		}
	}

	prevRetry := cfg.OnRetry
	onRetry := m.OnRetry()
	cfg.OnRetry = func(attempt int, outcome resilience.Outcome, delay time.Duration) {
		onRetry(attempt, outcome, delay)
		if prevRetry != nil {
			prevRetry(attempt, outcome, delay)
		}
	}
}

// OnAttempt returns a hook for ExecutorConfig.OnAttempt.
func (m *Middleware) OnAttempt() func(outcome resilience.Outcome, elapsed time.Duration) {
	return func(outcome resilience.Outcome, elapsed time.Duration) {
		m.metrics.RecordAttempt(context.Background(), m.meta, outcome, elapsed)

		if outcome.Kind != resilience.OutcomeSuccess {
			m.logger.Warn().
				Str("class", outcome.Class.String()).
				Str("reason", outcome.Reason).
				Dur("duration", elapsed).
				Msg("attempt failed")
		}
	}
}

// OnRetry returns a hook for ExecutorConfig.OnRetry.
func (m *Middleware) OnRetry() func(attempt int, outcome resilience.Outcome, delay time.Duration) {
	return func(attempt int, outcome resilience.Outcome, delay time.Duration) {
		m.metrics.RecordRetry(context.Background(), m.meta, attempt, outcome, delay)

		m.logger.Warn().
			Int("attempt", attempt+1).
			Str("class", outcome.Class.String()).
			Dur("backoff", delay).
			Msg("retrying request")
	}
}

// OnStateChange returns a hook for CircuitBreakerConfig.OnStateChange.
func (m *Middleware) OnStateChange() func(from, to resilience.State) {
	return func(from, to resilience.State) {
		m.metrics.RecordStateChange(context.Background(), m.meta, from, to)

		m.logger.Warn().
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state changed")
	}
}
