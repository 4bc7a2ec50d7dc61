package classify

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/apiguard/resilience"
)

func TestStatus_Success(t *testing.T) {
	c := New(Config{})

	for _, status := range []int{200, 201, 204} {
		outcome := c.Status(status, http.Header{})
		assert.Equal(t, resilience.OutcomeSuccess, outcome.Kind, "status %d", status)
	}
}

func TestStatus_RetryableSet(t *testing.T) {
	c := New(Config{})

	tests := []struct {
		status int
		class  resilience.FailureClass
	}{
		{429, resilience.FailureRateLimited},
		{502, resilience.FailureUnavailable},
		{503, resilience.FailureUnavailable},
		{504, resilience.FailureUnavailable},
		{408, resilience.FailureUnavailable},
		{500, resilience.FailureUnavailable}, // generic 5xx
	}
	for _, tt := range tests {
		outcome := c.Status(tt.status, http.Header{})
		assert.Equal(t, resilience.OutcomeRetryable, outcome.Kind, "status %d", tt.status)
		assert.Equal(t, tt.class, outcome.Class, "status %d", tt.status)

		var statusErr *StatusError
		require.ErrorAs(t, outcome.Err, &statusErr)
		assert.Equal(t, tt.status, statusErr.StatusCode)
	}
}

func TestStatus_AuthFatal(t *testing.T) {
	c := New(Config{})

	for _, status := range []int{401, 403} {
		outcome := c.Status(status, http.Header{})
		assert.Equal(t, resilience.OutcomeFatal, outcome.Kind, "status %d", status)
		assert.Equal(t, resilience.FailureAuthentication, outcome.Class, "status %d", status)
	}
}

func TestStatus_ValidationFatal(t *testing.T) {
	c := New(Config{})

	for _, status := range []int{400, 404, 422} {
		outcome := c.Status(status, http.Header{})
		assert.Equal(t, resilience.OutcomeFatal, outcome.Kind, "status %d", status)
		assert.Equal(t, resilience.FailureValidation, outcome.Class, "status %d", status)
	}
}

func TestStatus_RetryAfterHint(t *testing.T) {
	c := New(Config{})

	header := http.Header{}
	header.Set("Retry-After", "12")

	outcome := c.Status(429, header)
	assert.Equal(t, 12*time.Second, outcome.RetryAfter)
}

func TestStatus_CustomRetryableSet(t *testing.T) {
	c := New(Config{RetryableStatuses: []int{418}})

	outcome := c.Status(418, http.Header{})
	assert.Equal(t, resilience.OutcomeRetryable, outcome.Kind)

	// 429 is not in the custom set and below 500, so it falls through to
	// unexpected.
	outcome = c.Status(429, http.Header{})
	assert.Equal(t, resilience.OutcomeFatal, outcome.Kind)
}

func TestTransportError(t *testing.T) {
	c := New(Config{})

	t.Run("nil", func(t *testing.T) {
		assert.Equal(t, resilience.OutcomeSuccess, c.TransportError(nil).Kind)
	})

	t.Run("timeout", func(t *testing.T) {
		outcome := c.TransportError(&net.OpError{Op: "dial", Err: &timeoutError{}})
		assert.Equal(t, resilience.OutcomeRetryable, outcome.Kind)
		assert.Equal(t, resilience.FailureUnavailable, outcome.Class)
	})

	t.Run("connection refused", func(t *testing.T) {
		outcome := c.TransportError(&net.OpError{Op: "dial", Err: errors.New("connection refused")})
		assert.Equal(t, resilience.OutcomeRetryable, outcome.Kind)
	})

	t.Run("unexpected EOF", func(t *testing.T) {
		outcome := c.TransportError(io.ErrUnexpectedEOF)
		assert.Equal(t, resilience.OutcomeRetryable, outcome.Kind)
	})

	t.Run("cancelled", func(t *testing.T) {
		outcome := c.TransportError(context.Canceled)
		assert.Equal(t, resilience.OutcomeFatal, outcome.Kind)
	})

	t.Run("unclassified", func(t *testing.T) {
		outcome := c.TransportError(errors.New("weird"))
		assert.Equal(t, resilience.OutcomeFatal, outcome.Kind)
		assert.Equal(t, resilience.FailureUnexpected, outcome.Class)
	})
}

// timeoutError satisfies net.Error with Timeout() == true.
type timeoutError struct{}

func (*timeoutError) Error() string   { return "i/o timeout" }
func (*timeoutError) Timeout() bool   { return true }
func (*timeoutError) Temporary() bool { return true }

func TestRetryAfter(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), RetryAfter(http.Header{}))
	})

	t.Run("delta seconds", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", "30")
		assert.Equal(t, 30*time.Second, RetryAfter(h))
	})

	t.Run("negative seconds", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", "-5")
		assert.Equal(t, time.Duration(0), RetryAfter(h))
	})

	t.Run("http date", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", time.Now().Add(time.Minute).UTC().Format(http.TimeFormat))
		wait := RetryAfter(h)
		assert.Greater(t, wait, 50*time.Second)
		assert.LessOrEqual(t, wait, time.Minute)
	})

	t.Run("past date", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat))
		assert.Equal(t, time.Duration(0), RetryAfter(h))
	})

	t.Run("garbage", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", "soon")
		assert.Equal(t, time.Duration(0), RetryAfter(h))
	})
}

func TestStatusError_Error(t *testing.T) {
	err := &StatusError{StatusCode: 503}
	assert.Equal(t, "classify: backend returned HTTP 503", err.Error())
}
