package observe

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// TestParseLogLevel verifies level parsing and the info default.
func TestParseLogLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"unknown": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// TestLogger_WritesJSON verifies log lines are JSON objects with the
// standard keys.
func TestLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info().Str("backend", "github").Msg("request completed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if entry["level"] != "info" {
		t.Errorf("expected level info, got %v", entry["level"])
	}
	if entry["message"] != "request completed" {
		t.Errorf("expected message, got %v", entry["message"])
	}
	if entry["backend"] != "github" {
		t.Errorf("expected backend field, got %v", entry["backend"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected time field")
	}
}

// TestLogger_LevelFiltering verifies lines below the configured level are
// dropped.
func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)

	logger.Debug().Msg("dropped")
	logger.Info().Msg("dropped")
	logger.Warn().Msg("kept")
	logger.Error().Msg("kept")

	lines := strings.Count(strings.TrimSpace(buf.String()), "\n") + 1
	if buf.Len() == 0 {
		t.Fatal("expected output")
	}
	if lines != 2 {
		t.Errorf("expected 2 lines, got %d: %s", lines, buf.String())
	}
}

// TestRedact verifies sensitive keys are masked.
func TestRedact(t *testing.T) {
	if got := Redact("token", "ghp_abc123"); got != "[REDACTED]" {
		t.Errorf("expected token to be redacted, got %q", got)
	}
	if got := Redact("backend", "github"); got != "github" {
		t.Errorf("expected backend to pass through, got %q", got)
	}
}

// TestWithTarget verifies target metadata is attached to every line.
func TestWithTarget(t *testing.T) {
	var buf bytes.Buffer
	logger := WithTarget(NewLoggerWithWriter("info", &buf), TargetMeta{
		Backend:   "github",
		Operation: "pull_request.get",
		Method:    "graphql",
	})

	logger.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if entry["backend"] != "github" {
		t.Errorf("expected backend, got %v", entry["backend"])
	}
	if entry["operation"] != "pull_request.get" {
		t.Errorf("expected operation, got %v", entry["operation"])
	}
	if entry["method"] != "graphql" {
		t.Errorf("expected method, got %v", entry["method"])
	}
}
