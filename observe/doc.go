// Package observe provides telemetry for the request pipeline.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. Consumers wire the observer's hooks into the
// resilience executor and circuit breaker.
package observe
