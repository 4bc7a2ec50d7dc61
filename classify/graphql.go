package classify

import (
	"strings"
	"time"

	"github.com/jonwraymond/apiguard/resilience"
)

// GraphQLError is one entry of a GraphQL response's errors list.
type GraphQLError struct {
	Message    string             `json:"message"`
	Extensions GraphQLErrorExtras `json:"extensions"`
}

// GraphQLErrorExtras carries the structured extension fields backends
// attach to GraphQL errors.
type GraphQLErrorExtras struct {
	// Code is the machine-readable error code (e.g. "THROTTLED").
	Code string `json:"code"`

	// RetryAfterSeconds is an optional backend wait hint.
	RetryAfterSeconds float64 `json:"retryAfter,omitempty"`
}

// GraphQLErrors is a GraphQL errors list usable as a Go error.
type GraphQLErrors []GraphQLError

// Error implements the error interface.
func (e GraphQLErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, ge := range e {
		msgs = append(msgs, ge.Message)
	}
	return "classify: graphql: " + strings.Join(msgs, "; ")
}

// Fatal auth and validation codes used by GraphQL backends.
var (
	graphqlAuthCodes = map[string]bool{
		"UNAUTHENTICATED": true,
		"ACCESS_DENIED":   true,
		"FORBIDDEN":       true,
	}
	graphqlValidationCodes = map[string]bool{
		"GRAPHQL_PARSE_FAILED":      true,
		"GRAPHQL_VALIDATION_FAILED": true,
		"BAD_USER_INPUT":            true,
	}
)

// GraphQL classifies a GraphQL errors list. A 200 response with a
// throttled extension code is a retryable rate limit; internal server
// errors are retryable; auth and validation codes are fatal.
func (c *Classifier) GraphQL(errs []GraphQLError) resilience.Outcome {
	if len(errs) == 0 {
		return resilience.Success()
	}

	wrapped := GraphQLErrors(errs)

	for _, ge := range errs {
		code := ge.Extensions.Code
		switch {
		case code == c.throttledCode:
			hint := secondsToDuration(ge.Extensions.RetryAfterSeconds)
			return resilience.RetryableAfter(resilience.FailureRateLimited,
				"backend throttled the request", hint, wrapped)

		case graphqlAuthCodes[code]:
			return resilience.Fatal(resilience.FailureAuthentication, ge.Message, wrapped)

		case graphqlValidationCodes[code]:
			return resilience.Fatal(resilience.FailureValidation, ge.Message, wrapped)

		case code == "INTERNAL_SERVER_ERROR":
			return resilience.Retryable(resilience.FailureUnavailable, ge.Message, wrapped)
		}
	}

	return resilience.Fatal(resilience.FailureUnexpected, errs[0].Message, wrapped)
}

func secondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
