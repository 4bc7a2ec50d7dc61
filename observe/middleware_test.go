package observe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonwraymond/apiguard/resilience"
)

// recordingMetrics captures metric calls for assertions.
type recordingMetrics struct {
	mu           sync.Mutex
	attempts     int
	retries      int
	transitions  [][2]resilience.State
	lastOutcome  resilience.Outcome
	lastDuration time.Duration
}

func (m *recordingMetrics) RecordAttempt(ctx context.Context, meta TargetMeta, outcome resilience.Outcome, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	m.lastOutcome = outcome
	m.lastDuration = duration
}

func (m *recordingMetrics) RecordRetry(ctx context.Context, meta TargetMeta, attempt int, outcome resilience.Outcome, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func (m *recordingMetrics) RecordStateChange(ctx context.Context, meta TargetMeta, from, to resilience.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, [2]resilience.State{from, to})
}

func newTestMiddleware(metrics Metrics, logger zerolog.Logger) *Middleware {
	return NewMiddleware(newNoopTracer(), metrics, logger, TargetMeta{Backend: "github"})
}

// TestMiddleware_OnAttempt verifies the attempt hook records metrics and
// logs failures.
func TestMiddleware_OnAttempt(t *testing.T) {
	metrics := &recordingMetrics{}
	var buf bytes.Buffer
	m := newTestMiddleware(metrics, NewLoggerWithWriter("warn", &buf))

	hook := m.OnAttempt()
	hook(resilience.Success(), 10*time.Millisecond)
	hook(resilience.Retryable(resilience.FailureUnavailable, "bad gateway", nil), 20*time.Millisecond)

	if metrics.attempts != 2 {
		t.Errorf("expected 2 attempts recorded, got %d", metrics.attempts)
	}
	if !strings.Contains(buf.String(), "attempt failed") {
		t.Errorf("expected failure log, got: %s", buf.String())
	}
	// Success attempts are not logged at warn level.
	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("expected exactly 1 log line, got: %s", buf.String())
	}
}

// TestMiddleware_OnRetry verifies the retry hook.
func TestMiddleware_OnRetry(t *testing.T) {
	metrics := &recordingMetrics{}
	var buf bytes.Buffer
	m := newTestMiddleware(metrics, NewLoggerWithWriter("warn", &buf))

	m.OnRetry()(0, resilience.Retryable(resilience.FailureRateLimited, "throttled", nil), time.Second)

	if metrics.retries != 1 {
		t.Errorf("expected 1 retry recorded, got %d", metrics.retries)
	}
	if !strings.Contains(buf.String(), "retrying request") {
		t.Errorf("expected retry log, got: %s", buf.String())
	}
}

// TestMiddleware_OnStateChange verifies the breaker hook.
func TestMiddleware_OnStateChange(t *testing.T) {
	metrics := &recordingMetrics{}
	var buf bytes.Buffer
	m := newTestMiddleware(metrics, NewLoggerWithWriter("warn", &buf))

	m.OnStateChange()(resilience.StateClosed, resilience.StateOpen)

	if len(metrics.transitions) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(metrics.transitions))
	}
	if metrics.transitions[0] != [2]resilience.State{resilience.StateClosed, resilience.StateOpen} {
		t.Errorf("unexpected transition: %v", metrics.transitions[0])
	}
	if !strings.Contains(buf.String(), "circuit breaker state changed") {
		t.Errorf("expected breaker log, got: %s", buf.String())
	}
}

// TestMiddleware_Instrument verifies hooks are chained with existing ones.
func TestMiddleware_Instrument(t *testing.T) {
	metrics := &recordingMetrics{}
	m := newTestMiddleware(metrics, zerolog.Nop())

	var prevAttempts, prevRetries int
	cfg := resilience.ExecutorConfig{
		OnAttempt: func(outcome resilience.Outcome, elapsed time.Duration) { prevAttempts++ },
		OnRetry:   func(attempt int, outcome resilience.Outcome, delay time.Duration) { prevRetries++ },
	}

	m.Instrument(&cfg)

	cfg.OnAttempt(resilience.Success(), time.Millisecond)
	cfg.OnRetry(0, resilience.Retryable(resilience.FailureUnavailable, "x", nil), time.Second)

	if metrics.attempts != 1 || prevAttempts != 1 {
		t.Errorf("attempt hook not chained: metrics=%d prev=%d", metrics.attempts, prevAttempts)
	}
	if metrics.retries != 1 || prevRetries != 1 {
		t.Errorf("retry hook not chained: metrics=%d prev=%d", metrics.retries, prevRetries)
	}
}

// TestMiddleware_Wrap verifies the span wrapper propagates results and
// logs failures.
func TestMiddleware_Wrap(t *testing.T) {
	var buf bytes.Buffer
	m := newTestMiddleware(&recordingMetrics{}, NewLoggerWithWriter("debug", &buf))

	ok := m.Wrap(func(ctx context.Context) error { return nil })
	if err := ok(context.Background()); err != nil {
		t.Errorf("expected nil error, got: %v", err)
	}
	if !strings.Contains(buf.String(), "request completed") {
		t.Errorf("expected completion log, got: %s", buf.String())
	}

	boom := errors.New("boom")
	fail := m.Wrap(func(ctx context.Context) error { return boom })
	if err := fail(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected boom, got: %v", err)
	}
	if !strings.Contains(buf.String(), "request failed") {
		t.Errorf("expected failure log, got: %s", buf.String())
	}
}

// TestFromObserver verifies construction and validation.
func TestFromObserver(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "apiguard-test"})
	if err != nil {
		t.Fatalf("failed to create observer: %v", err)
	}

	if _, err := FromObserver(obs, TargetMeta{Backend: "github"}); err != nil {
		t.Errorf("expected nil error, got: %v", err)
	}
	if _, err := FromObserver(nil, TargetMeta{Backend: "github"}); !errors.Is(err, ErrNilObserver) {
		t.Errorf("expected ErrNilObserver, got: %v", err)
	}
	if _, err := FromObserver(obs, TargetMeta{}); !errors.Is(err, ErrMissingBackend) {
		t.Errorf("expected ErrMissingBackend, got: %v", err)
	}
}

// TestNoopMiddleware verifies the noop middleware is safe to use.
func TestNoopMiddleware(t *testing.T) {
	m := NoopMiddleware(TargetMeta{Backend: "github"})

	m.OnAttempt()(resilience.Success(), time.Millisecond)
	m.OnRetry()(0, resilience.Retryable(resilience.FailureUnavailable, "x", nil), time.Second)
	m.OnStateChange()(resilience.StateClosed, resilience.StateOpen)

	if err := m.Wrap(func(ctx context.Context) error { return nil })(context.Background()); err != nil {
		t.Errorf("expected nil error, got: %v", err)
	}
}
