package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/apiguard/resilience"
)

// Metrics records request pipeline metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordAttempt records one pipeline attempt with its classified
	// outcome and duration.
	RecordAttempt(ctx context.Context, meta TargetMeta, outcome resilience.Outcome, duration time.Duration)

	// RecordRetry records a scheduled retry and its backoff delay.
	RecordRetry(ctx context.Context, meta TargetMeta, attempt int, outcome resilience.Outcome, delay time.Duration)

	// RecordStateChange records a circuit breaker transition.
	RecordStateChange(ctx context.Context, meta TargetMeta, from, to resilience.State)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	attemptCount metric.Int64Counter
	failureCount metric.Int64Counter
	retryCount   metric.Int64Counter
	breakerCount metric.Int64Counter
	durationHist metric.Float64Histogram
	backoffHist  metric.Float64Histogram
}

// newMetrics creates a new Metrics instance with the given meter.
func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	attemptCount, err := meter.Int64Counter(
		"api.request.attempts",
		metric.WithDescription("Total number of request attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	failureCount, err := meter.Int64Counter(
		"api.request.failures",
		metric.WithDescription("Total number of failed request attempts"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	retryCount, err := meter.Int64Counter(
		"api.request.retries",
		metric.WithDescription("Total number of scheduled retries"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	breakerCount, err := meter.Int64Counter(
		"api.breaker.transitions",
		metric.WithDescription("Total number of circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"api.request.duration_ms",
		metric.WithDescription("Request attempt duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	backoffHist, err := meter.Float64Histogram(
		"api.request.backoff_ms",
		metric.WithDescription("Backoff delay before a retry in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		attemptCount: attemptCount,
		failureCount: failureCount,
		retryCount:   retryCount,
		breakerCount: breakerCount,
		durationHist: durationHist,
		backoffHist:  backoffHist,
	}, nil
}

func (m *metricsImpl) targetAttrs(meta TargetMeta) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("api.backend", meta.Backend),
	}
	if meta.Operation != "" {
		attrs = append(attrs, attribute.String("api.operation", meta.Operation))
	}
	return attrs
}

// RecordAttempt records metrics for one pipeline attempt.
func (m *metricsImpl) RecordAttempt(ctx context.Context, meta TargetMeta, outcome resilience.Outcome, duration time.Duration) {
	attrs := m.targetAttrs(meta)
	opt := metric.WithAttributes(attrs...)

	m.attemptCount.Add(ctx, 1, opt)
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)

	if outcome.Kind != resilience.OutcomeSuccess {
		failAttrs := append(attrs,
			attribute.String("api.failure_class", outcome.Class.String()),
			attribute.Bool("api.retryable", outcome.Kind == resilience.OutcomeRetryable),
		)
		m.failureCount.Add(ctx, 1, metric.WithAttributes(failAttrs...))
	}
}

// RecordRetry records a scheduled retry.
func (m *metricsImpl) RecordRetry(ctx context.Context, meta TargetMeta, attempt int, outcome resilience.Outcome, delay time.Duration) {
	attrs := append(m.targetAttrs(meta),
		attribute.String("api.failure_class", outcome.Class.String()),
		attribute.Int("api.attempt", attempt),
	)
	opt := metric.WithAttributes(attrs...)

	m.retryCount.Add(ctx, 1, opt)
	m.backoffHist.Record(ctx, float64(delay.Milliseconds()), opt)
}

// RecordStateChange records a circuit breaker transition.
func (m *metricsImpl) RecordStateChange(ctx context.Context, meta TargetMeta, from, to resilience.State) {
	m.breakerCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("api.backend", meta.Backend),
		attribute.String("api.breaker.from", from.String()),
		attribute.String("api.breaker.to", to.String()),
	))
}

// RegisterQueueDepth registers observable gauges reporting a queue's
// waiting and in-flight counts. The returned registration must be
// unregistered when the queue is closed.
func RegisterQueueDepth(meter metric.Meter, meta TargetMeta, q *resilience.Queue) (metric.Registration, error) {
	depth, err := meter.Int64ObservableGauge(
		"api.queue.depth",
		metric.WithDescription("Requests waiting for a queue slot"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	inflight, err := meter.Int64ObservableGauge(
		"api.queue.inflight",
		metric.WithDescription("Requests currently holding a queue slot"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	opt := metric.WithAttributes(attribute.String("api.backend", meta.Backend))
	return meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		o.ObserveInt64(depth, int64(q.Waiting()), opt)
		o.ObserveInt64(inflight, int64(q.InFlight()), opt)
		return nil
	}, depth, inflight)
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordAttempt(ctx context.Context, meta TargetMeta, outcome resilience.Outcome, duration time.Duration) {
}

func (m *noopMetrics) RecordRetry(ctx context.Context, meta TargetMeta, attempt int, outcome resilience.Outcome, delay time.Duration) {
}

func (m *noopMetrics) RecordStateChange(ctx context.Context, meta TargetMeta, from, to resilience.State) {
}
