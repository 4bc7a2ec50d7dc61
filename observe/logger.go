package observe

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// ParseLogLevel parses a string log level, defaulting to info.
func ParseLogLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a structured logger with the given level, writing
// JSON lines to stderr.
func NewLogger(level string) zerolog.Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a structured logger with a custom writer.
func NewLoggerWithWriter(level string, w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		Level(ParseLogLevel(level)).
		With().
		Timestamp().
		Logger()
}

// RedactedFields lists field keys whose values must never be logged
// verbatim.
var RedactedFields = []string{
	"token",
	"password",
	"secret",
	"api_key",
	"apiKey",
	"credential",
	"private_key",
}

var redactedKeys = func() map[string]bool {
	m := make(map[string]bool, len(RedactedFields))
	for _, k := range RedactedFields {
		m[k] = true
	}
	return m
}()

// Redact returns "[REDACTED]" for sensitive field keys and the value
// unchanged otherwise.
func Redact(key, value string) string {
	if redactedKeys[key] {
		return "[REDACTED]"
	}
	return value
}

// WithTarget returns a logger with backend target context attached.
func WithTarget(logger zerolog.Logger, meta TargetMeta) zerolog.Logger {
	ctx := logger.With().Str("backend", meta.Backend)
	if meta.Operation != "" {
		ctx = ctx.Str("operation", meta.Operation)
	}
	if meta.Method != "" {
		ctx = ctx.Str("method", meta.Method)
	}
	return ctx.Logger()
}
