package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/apiguard/resilience"
)

func TestGraphQL_NoErrors(t *testing.T) {
	c := New(Config{})

	outcome := c.GraphQL(nil)
	assert.Equal(t, resilience.OutcomeSuccess, outcome.Kind)
}

func TestGraphQL_Throttled(t *testing.T) {
	c := New(Config{})

	outcome := c.GraphQL([]GraphQLError{{
		Message:    "Throttled",
		Extensions: GraphQLErrorExtras{Code: "THROTTLED", RetryAfterSeconds: 2.5},
	}})

	assert.Equal(t, resilience.OutcomeRetryable, outcome.Kind)
	assert.Equal(t, resilience.FailureRateLimited, outcome.Class)
	assert.Equal(t, 2500*time.Millisecond, outcome.RetryAfter)
}

func TestGraphQL_CustomThrottledCode(t *testing.T) {
	c := New(Config{ThrottledCode: "MAX_COST_EXCEEDED"})

	outcome := c.GraphQL([]GraphQLError{{
		Message:    "query cost limit reached",
		Extensions: GraphQLErrorExtras{Code: "MAX_COST_EXCEEDED"},
	}})
	assert.Equal(t, resilience.OutcomeRetryable, outcome.Kind)
	assert.Equal(t, resilience.FailureRateLimited, outcome.Class)

	// The default code is no longer recognized.
	outcome = c.GraphQL([]GraphQLError{{
		Message:    "Throttled",
		Extensions: GraphQLErrorExtras{Code: "THROTTLED"},
	}})
	assert.Equal(t, resilience.OutcomeFatal, outcome.Kind)
}

func TestGraphQL_AuthCodes(t *testing.T) {
	c := New(Config{})

	for _, code := range []string{"UNAUTHENTICATED", "ACCESS_DENIED", "FORBIDDEN"} {
		outcome := c.GraphQL([]GraphQLError{{
			Message:    "no access",
			Extensions: GraphQLErrorExtras{Code: code},
		}})
		assert.Equal(t, resilience.OutcomeFatal, outcome.Kind, "code %s", code)
		assert.Equal(t, resilience.FailureAuthentication, outcome.Class, "code %s", code)
	}
}

func TestGraphQL_ValidationCodes(t *testing.T) {
	c := New(Config{})

	for _, code := range []string{"GRAPHQL_PARSE_FAILED", "GRAPHQL_VALIDATION_FAILED", "BAD_USER_INPUT"} {
		outcome := c.GraphQL([]GraphQLError{{
			Message:    "bad query",
			Extensions: GraphQLErrorExtras{Code: code},
		}})
		assert.Equal(t, resilience.OutcomeFatal, outcome.Kind, "code %s", code)
		assert.Equal(t, resilience.FailureValidation, outcome.Class, "code %s", code)
	}
}

func TestGraphQL_InternalErrorRetryable(t *testing.T) {
	c := New(Config{})

	outcome := c.GraphQL([]GraphQLError{{
		Message:    "something broke",
		Extensions: GraphQLErrorExtras{Code: "INTERNAL_SERVER_ERROR"},
	}})
	assert.Equal(t, resilience.OutcomeRetryable, outcome.Kind)
	assert.Equal(t, resilience.FailureUnavailable, outcome.Class)
}

func TestGraphQL_UnknownCodeFatal(t *testing.T) {
	c := New(Config{})

	outcome := c.GraphQL([]GraphQLError{{
		Message:    "mystery",
		Extensions: GraphQLErrorExtras{Code: "SOMETHING_ELSE"},
	}})
	assert.Equal(t, resilience.OutcomeFatal, outcome.Kind)
	assert.Equal(t, resilience.FailureUnexpected, outcome.Class)

	var gqlErrs GraphQLErrors
	require.ErrorAs(t, outcome.Err, &gqlErrs)
	assert.Len(t, gqlErrs, 1)
}

func TestGraphQL_ThrottledWinsOverLaterErrors(t *testing.T) {
	c := New(Config{})

	outcome := c.GraphQL([]GraphQLError{
		{Message: "Throttled", Extensions: GraphQLErrorExtras{Code: "THROTTLED"}},
		{Message: "bad query", Extensions: GraphQLErrorExtras{Code: "BAD_USER_INPUT"}},
	})
	assert.Equal(t, resilience.OutcomeRetryable, outcome.Kind)
}

func TestGraphQLErrors_Error(t *testing.T) {
	errs := GraphQLErrors{
		{Message: "first"},
		{Message: "second"},
	}
	assert.Equal(t, "classify: graphql: first; second", errs.Error())
}
