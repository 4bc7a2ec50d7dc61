package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jonwraymond/apiguard/resilience"
)

// DefaultRetryableStatuses are the HTTP statuses treated as retryable in
// addition to the generic 5xx range.
var DefaultRetryableStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
	http.StatusRequestTimeout,
}

// DefaultThrottledCode is the GraphQL extension code backends use to
// signal rate limiting inside a 200 response.
const DefaultThrottledCode = "THROTTLED"

// Config configures a Classifier.
type Config struct {
	// RetryableStatuses overrides the retryable HTTP status set.
	// Default: DefaultRetryableStatuses.
	RetryableStatuses []int

	// ThrottledCode is the GraphQL extension code treated as a rate
	// limit. Default: DefaultThrottledCode.
	ThrottledCode string
}

// Classifier classifies HTTP responses, transport errors, and GraphQL
// error payloads into resilience outcomes.
type Classifier struct {
	retryable     map[int]bool
	throttledCode string
}

// New creates a new classifier.
func New(config Config) *Classifier {
	statuses := config.RetryableStatuses
	if len(statuses) == 0 {
		statuses = DefaultRetryableStatuses
	}
	retryable := make(map[int]bool, len(statuses))
	for _, s := range statuses {
		retryable[s] = true
	}

	code := config.ThrottledCode
	if code == "" {
		code = DefaultThrottledCode
	}

	return &Classifier{retryable: retryable, throttledCode: code}
}

// StatusError reports a non-success HTTP status.
type StatusError struct {
	// StatusCode is the HTTP status code.
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("classify: backend returned HTTP %d", e.StatusCode)
}

// Status classifies an HTTP status code and its response headers.
func (c *Classifier) Status(status int, header http.Header) resilience.Outcome {
	switch {
	case status >= 200 && status < 300:
		return resilience.Success()

	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return resilience.Fatal(resilience.FailureAuthentication,
			fmt.Sprintf("authentication rejected (HTTP %d)", status),
			&StatusError{StatusCode: status})

	case status == http.StatusBadRequest ||
		status == http.StatusNotFound ||
		status == http.StatusUnprocessableEntity:
		return resilience.Fatal(resilience.FailureValidation,
			fmt.Sprintf("request rejected (HTTP %d)", status),
			&StatusError{StatusCode: status})

	case c.retryable[status] || status >= 500:
		class := resilience.FailureUnavailable
		if status == http.StatusTooManyRequests {
			class = resilience.FailureRateLimited
		}
		return resilience.RetryableAfter(class,
			fmt.Sprintf("HTTP %d", status),
			RetryAfter(header),
			&StatusError{StatusCode: status})

	default:
		return resilience.Fatal(resilience.FailureUnexpected,
			fmt.Sprintf("HTTP %d", status),
			&StatusError{StatusCode: status})
	}
}

// TransportError classifies an error returned by the HTTP transport
// before any response was received. Timeouts and connection-level faults
// are retryable; cancellation is not, since the caller has already given
// up.
func (c *Classifier) TransportError(err error) resilience.Outcome {
	if err == nil {
		return resilience.Success()
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Fatal(resilience.FailureUnexpected, "request cancelled", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return resilience.Retryable(resilience.FailureUnavailable, "request timed out", err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return resilience.Retryable(resilience.FailureUnavailable, "connection error", err)
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return resilience.Retryable(resilience.FailureUnavailable, "connection closed", err)
	}

	return resilience.Fatal(resilience.FailureUnexpected, err.Error(), err)
}

// RetryAfter parses a Retry-After header into a wait duration. Both the
// delta-seconds and HTTP-date forms are supported. Zero means no usable
// hint.
func RetryAfter(header http.Header) time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}
