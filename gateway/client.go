package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/apiguard/classify"
	"github.com/jonwraymond/apiguard/config"
	"github.com/jonwraymond/apiguard/resilience"
)

// maxResponseBody caps how much of a response body is read.
const maxResponseBody = 10 << 20

// ClientConfig configures a gateway client.
type ClientConfig struct {
	// BaseURL is the backend's API root, without a trailing slash.
	BaseURL string

	// Tokens supplies bearer tokens. Optional; unauthenticated backends
	// may omit it.
	Tokens TokenSource

	// HTTPClient is the underlying transport.
	// Default: &http.Client{Timeout: 30s}
	HTTPClient *http.Client

	// Classifier maps responses to outcomes. Default: classify.New with
	// defaults.
	Classifier *classify.Classifier

	// Pipeline configures the resilience components. The Classifier
	// field is owned by the client and overwritten; OnRetry defaults to
	// logging through Logger.
	Pipeline resilience.ExecutorConfig

	// Logger receives request and retry events. Default: disabled.
	Logger zerolog.Logger
}

// Client is a resilient API client for one backend target.
type Client struct {
	baseURL    string
	tokens     TokenSource
	http       *http.Client
	classifier *classify.Classifier
	exec       *resilience.Executor
	logger     zerolog.Logger
}

// apiResult carries one attempt's raw response through classification.
type apiResult struct {
	status  int
	header  http.Header
	body    []byte
	gqlErrs []classify.GraphQLError
}

// New creates a gateway client.
func New(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("gateway: base URL is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Classifier == nil {
		cfg.Classifier = classify.New(classify.Config{})
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokens:     cfg.Tokens,
		http:       cfg.HTTPClient,
		classifier: cfg.Classifier,
		logger:     cfg.Logger,
	}

	pipeline := cfg.Pipeline
	pipeline.Classifier = c.classifyResult
	if pipeline.OnRetry == nil {
		pipeline.OnRetry = c.logRetry
	}
	c.exec = resilience.NewExecutor(pipeline)
	return c, nil
}

// NewFromConfig builds a client, its token source, and its resilience
// pipeline from environment-driven configuration.
func NewFromConfig(cfg config.Config, logger zerolog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var tokens TokenSource
	switch {
	case cfg.AppID != "" && cfg.AppPrivateKey != "":
		ts, err := NewAppTokenSource(AppTokenConfig{
			AppID:         cfg.AppID,
			PrivateKeyPEM: cfg.AppPrivateKey,
		})
		if err != nil {
			return nil, err
		}
		tokens = ts
	case cfg.Token != "":
		tokens = StaticToken(cfg.Token)
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokens:     tokens,
		http:       &http.Client{Timeout: 30 * time.Second},
		classifier: classify.New(classify.Config{}),
		logger:     logger,
	}

	rc := cfg.Resilience
	c.exec = resilience.NewExecutor(resilience.ExecutorConfig{
		Queue: resilience.NewQueue(resilience.QueueConfig{Slots: rc.QueueSlots}),
		Bucket: resilience.NewTokenBucket(resilience.TokenBucketConfig{
			Capacity:   rc.BucketCapacity,
			RefillRate: rc.RefillRate(),
		}),
		Breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: rc.BreakerThreshold,
			Cooldown:         rc.BreakerCooldown,
			OnStateChange: func(from, to resilience.State) {
				logger.Warn().
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("circuit breaker state changed")
			},
		}),
		Retry: resilience.NewRetryPolicy(resilience.RetryConfig{
			MaxRetries: rc.MaxRetries,
			BaseDelay:  rc.RetryBaseDelay,
			MaxDelay:   rc.RetryMaxDelay,
			Jitter:     rc.RetryJitter,
		}),
		Classifier: c.classifyResult,
		OnRetry:    c.logRetry,
	})
	return c, nil
}

func (c *Client) classifyResult(value any, err error) resilience.Outcome {
	if err != nil {
		return c.classifier.TransportError(err)
	}
	r, ok := value.(*apiResult)
	if !ok {
		return resilience.Fatal(resilience.FailureUnexpected, "unexpected result type", nil)
	}
	if outcome := c.classifier.Status(r.status, r.header); outcome.Kind != resilience.OutcomeSuccess {
		return outcome
	}
	return c.classifier.GraphQL(r.gqlErrs)
}

func (c *Client) logRetry(attempt int, outcome resilience.Outcome, delay time.Duration) {
	c.logger.Warn().
		Int("attempt", attempt+1).
		Str("class", outcome.Class.String()).
		Str("reason", outcome.Reason).
		Dur("backoff", delay).
		Msg("retrying request")
}

// Get performs an idempotent GET; failures may be retried.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.rest(ctx, http.MethodGet, path, nil, out, false)
}

// Post performs a POST. Mutating: attempted at most once.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.rest(ctx, http.MethodPost, path, body, out, true)
}

// Put performs a PUT. Mutating: attempted at most once.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.rest(ctx, http.MethodPut, path, body, out, true)
}

// Delete performs a DELETE. Mutating: attempted at most once.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.rest(ctx, http.MethodDelete, path, nil, nil, true)
}

func (c *Client) rest(ctx context.Context, method, path string, body, out any, mutating bool) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: encode request body: %w", err)
		}
	}

	result, err := c.execute(ctx, method, c.baseURL+path, payload, mutating, false)
	if err != nil {
		return err
	}

	if out != nil && result.status != http.StatusNoContent && len(result.body) > 0 {
		if err := json.Unmarshal(result.body, out); err != nil {
			return fmt.Errorf("gateway: decode response: %w", err)
		}
	}
	return nil
}

// graphqlRequest is the standard GraphQL HTTP payload.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the standard GraphQL HTTP response envelope.
type graphqlResponse struct {
	Data   json.RawMessage         `json:"data"`
	Errors []classify.GraphQLError `json:"errors,omitempty"`
}

// Query runs a GraphQL query (idempotent, retryable). out receives the
// response's data object.
func (c *Client) Query(ctx context.Context, query string, variables map[string]any, out any) error {
	return c.graphql(ctx, query, variables, out, false)
}

// Mutate runs a GraphQL mutation. Mutating: attempted at most once.
func (c *Client) Mutate(ctx context.Context, mutation string, variables map[string]any, out any) error {
	return c.graphql(ctx, mutation, variables, out, true)
}

func (c *Client) graphql(ctx context.Context, query string, variables map[string]any, out any, mutating bool) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("gateway: encode graphql request: %w", err)
	}

	result, err := c.execute(ctx, http.MethodPost, c.baseURL+"/graphql", payload, mutating, true)
	if err != nil {
		return err
	}

	if out != nil {
		var envelope graphqlResponse
		if err := json.Unmarshal(result.body, &envelope); err != nil {
			return fmt.Errorf("gateway: decode graphql response: %w", err)
		}
		if len(envelope.Data) > 0 {
			if err := json.Unmarshal(envelope.Data, out); err != nil {
				return fmt.Errorf("gateway: decode graphql data: %w", err)
			}
		}
	}
	return nil
}

// execute runs one logical request through the resilience pipeline. Each
// attempt builds a fresh HTTP request from the captured payload.
func (c *Client) execute(ctx context.Context, method, url string, payload []byte, mutating, graphql bool) (*apiResult, error) {
	return resilience.Do(ctx, c.exec, mutating, func(ctx context.Context) (*apiResult, error) {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.tokens != nil {
			token, err := c.tokens.Token(ctx)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}

		c.logger.Debug().Str("method", method).Str("url", url).Msg("sending request")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return nil, err
		}

		result := &apiResult{status: resp.StatusCode, header: resp.Header, body: body}
		if graphql && resp.StatusCode == http.StatusOK {
			var envelope graphqlResponse
			if err := json.Unmarshal(body, &envelope); err == nil {
				result.gqlErrs = envelope.Errors
			}
		}
		return result, nil
	})
}

// Batch runs n independent requests concurrently. The executor's queue
// still serializes actual backend calls; Batch only overlaps the
// waiting. The first error cancels the remaining requests.
func (c *Client) Batch(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return fn(ctx, i)
		})
	}
	return g.Wait()
}

// Executor exposes the client's resilience pipeline.
func (c *Client) Executor() *resilience.Executor { return c.exec }

// Close shuts down the client's request queue, failing pending requests
// with resilience.ErrQueueClosed.
func (c *Client) Close() {
	c.exec.Queue().Close()
}
