package resilience

import (
	"fmt"
	"time"
)

// OutcomeKind is the executor's decision about one attempt result.
type OutcomeKind int

const (
	// OutcomeSuccess means the attempt succeeded and its value is final.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRetryable means the attempt failed in a way that may succeed
	// if repeated (rate limit, 5xx, timeout, transport error).
	OutcomeRetryable
	// OutcomeFatal means the attempt failed in a way that repeating cannot
	// fix (auth failure, validation failure, open circuit).
	OutcomeFatal
)

// String returns the string representation of the kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// FailureClass names the failure category surfaced to callers.
type FailureClass int

const (
	// FailureUnexpected wraps any unclassified error.
	FailureUnexpected FailureClass = iota
	// FailureRateLimited indicates the backend throttled the request.
	FailureRateLimited
	// FailureUnavailable indicates a server-side or transport-level fault.
	FailureUnavailable
	// FailureAuthentication indicates rejected credentials.
	FailureAuthentication
	// FailureValidation indicates a malformed or rejected request.
	FailureValidation
	// FailureCircuitOpen indicates the breaker rejected the request
	// without attempting it.
	FailureCircuitOpen
)

// String returns the string representation of the class.
func (c FailureClass) String() string {
	switch c {
	case FailureRateLimited:
		return "rate_limited"
	case FailureUnavailable:
		return "unavailable"
	case FailureAuthentication:
		return "authentication"
	case FailureValidation:
		return "validation"
	case FailureCircuitOpen:
		return "circuit_open"
	case FailureUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Outcome classifies the raw result of one attempt.
type Outcome struct {
	// Kind is the policy-relevant classification.
	Kind OutcomeKind

	// Class categorizes a failure. Ignored when Kind is OutcomeSuccess.
	Class FailureClass

	// Reason is a short human-readable description of the failure.
	Reason string

	// RetryAfter is an optional backend-supplied wait hint (e.g. from a
	// Retry-After header). Zero means no hint.
	RetryAfter time.Duration

	// Err is the underlying error, if any.
	Err error
}

// Success returns a successful outcome.
func Success() Outcome {
	return Outcome{Kind: OutcomeSuccess}
}

// Retryable returns a retryable failure outcome.
func Retryable(class FailureClass, reason string, err error) Outcome {
	return Outcome{Kind: OutcomeRetryable, Class: class, Reason: reason, Err: err}
}

// RetryableAfter returns a retryable failure carrying a backend wait hint.
func RetryableAfter(class FailureClass, reason string, hint time.Duration, err error) Outcome {
	return Outcome{Kind: OutcomeRetryable, Class: class, Reason: reason, RetryAfter: hint, Err: err}
}

// Fatal returns a non-retryable failure outcome.
func Fatal(class FailureClass, reason string, err error) Outcome {
	return Outcome{Kind: OutcomeFatal, Class: class, Reason: reason, Err: err}
}

// Classifier maps a raw attempt result (returned value plus error) to an
// Outcome. The transport layer that constructs operations supplies the
// classifier, since only it knows the backend's error taxonomy.
type Classifier func(value any, err error) Outcome

// Failure is the terminal error returned by the executor for any attempt
// sequence that did not end in success. It preserves the classification of
// the last attempt so callers can render an actionable message.
type Failure struct {
	// Class is the failure category of the final attempt.
	Class FailureClass

	// Reason describes the final attempt's failure.
	Reason string

	// Retryable reports whether the final attempt was classified as
	// retryable. True means the executor gave up after exhausting its
	// retry budget; false means it failed immediately.
	Retryable bool

	// RetryAfter is the backend's suggested wait, when one was supplied.
	RetryAfter time.Duration

	// Attempts is the number of attempts performed.
	Attempts int

	// Err is the underlying error from the final attempt.
	Err error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Reason != "" {
		return fmt.Sprintf("resilience: %s: %s (attempts=%d)", f.Class, f.Reason, f.Attempts)
	}
	return fmt.Sprintf("resilience: %s (attempts=%d)", f.Class, f.Attempts)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error { return f.Err }
