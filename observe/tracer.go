package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// TargetMeta identifies one backend request for telemetry purposes.
type TargetMeta struct {
	Backend   string // Backend name, e.g. "github" (required)
	Operation string // Logical operation, e.g. "pull_request.get" (optional)
	Method    string // HTTP method or "graphql" (optional)
}

// SpanName returns the deterministic span name for this request.
// Format: api.request.<backend>.<operation> or api.request.<backend>
func (m TargetMeta) SpanName() string {
	if m.Operation != "" {
		return "api.request." + m.Backend + "." + m.Operation
	}
	return "api.request." + m.Backend
}

// Tracer wraps OpenTelemetry tracing with request-scoped span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a backend request.
	StartSpan(ctx context.Context, meta TargetMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// newTracer creates a new Tracer wrapping the given OpenTelemetry tracer.
func newTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with target metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta TargetMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("api.backend", meta.Backend),
		attribute.Bool("api.error", false), // Updated in EndSpan on error
	}
	if meta.Operation != "" {
		attrs = append(attrs, attribute.String("api.operation", meta.Operation))
	}
	if meta.Method != "" {
		attrs = append(attrs, attribute.String("api.method", meta.Method))
	}

	ctx, span := t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)

	return ctx, span
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("api.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// newNoopTracer creates a no-op tracer.
func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta TargetMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
