package resilience

import (
	"context"
	"time"
)

// ExecutorConfig configures a resilient executor. Nil components are
// constructed with their defaults, so the zero config yields a working
// executor for a single-flight, 100-credit, 10s-window backend.
type ExecutorConfig struct {
	// Queue serializes concurrent requests. Default: 1 slot.
	Queue *Queue

	// Bucket rate-limits attempts. Default: capacity 100, refill 10/s.
	Bucket *TokenBucket

	// Breaker gates attempts against a failing backend.
	// Default: threshold 5, cooldown 30s.
	Breaker *CircuitBreaker

	// Retry decides whether failed attempts are repeated.
	// Default: 3 retries, 1s base delay.
	Retry *RetryPolicy

	// Classifier maps raw operation results to outcomes. The default
	// treats any error as a fatal unexpected failure; real deployments
	// supply a classifier from their transport layer.
	Classifier Classifier

	// Clock is the time source for backoff sleeps. Default: SystemClock().
	Clock Clock

	// OnAttempt is called after every attempt with its classification and
	// duration.
	OnAttempt func(outcome Outcome, elapsed time.Duration)

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, outcome Outcome, delay time.Duration)
}

// Executor composes the queue, circuit breaker, token bucket, and retry
// policy into one request-execution pipeline. For each attempt a request
// waits for a queue turn, then consults the breaker, then acquires a
// rate-limit credit, then runs the operation. The ordering is deliberate:
// an open circuit rejects before a scarce credit is consumed, and the
// whole pipeline is evaluated under the backend's concurrency cap.
//
// One Executor owns its breaker and bucket state for one backend target.
// Multiple backends require one Executor each, never shared state.
type Executor struct {
	queue      *Queue
	bucket     *TokenBucket
	breaker    *CircuitBreaker
	retry      *RetryPolicy
	classifier Classifier
	clock      Clock
	onAttempt  func(outcome Outcome, elapsed time.Duration)
	onRetry    func(attempt int, outcome Outcome, delay time.Duration)
}

// NewExecutor creates a new resilient executor.
func NewExecutor(config ExecutorConfig) *Executor {
	// Apply defaults
	if config.Queue == nil {
		config.Queue = NewQueue(QueueConfig{})
	}
	if config.Bucket == nil {
		config.Bucket = NewTokenBucket(TokenBucketConfig{})
	}
	if config.Breaker == nil {
		config.Breaker = NewCircuitBreaker(CircuitBreakerConfig{})
	}
	if config.Retry == nil {
		config.Retry = NewRetryPolicy(RetryConfig{})
	}
	if config.Classifier == nil {
		config.Classifier = defaultClassifier
	}
	if config.Clock == nil {
		config.Clock = SystemClock()
	}

	return &Executor{
		queue:      config.Queue,
		bucket:     config.Bucket,
		breaker:    config.Breaker,
		retry:      config.Retry,
		classifier: config.Classifier,
		clock:      config.Clock,
		onAttempt:  config.OnAttempt,
		onRetry:    config.OnRetry,
	}
}

// defaultClassifier treats any error as a fatal unexpected failure.
func defaultClassifier(_ any, err error) Outcome {
	if err == nil {
		return Success()
	}
	return Fatal(FailureUnexpected, err.Error(), err)
}

// Do runs op through the executor's pipeline and returns its value.
// mutating marks operations that change backend state; they are attempted
// at most once regardless of failure classification.
//
// Terminal failures are returned as *Failure, preserving the last
// attempt's classification. Cancellation at any suspension point (queue
// admission, credit acquisition, the operation itself, backoff sleep)
// returns the context error. A closed queue returns ErrQueueClosed.
func Do[T any](ctx context.Context, e *Executor, mutating bool, op func(context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		var value T
		outcome, err := e.runAttempt(ctx, func(ctx context.Context) Outcome {
			v, opErr := op(ctx)
			value = v
			return e.classifier(v, opErr)
		})
		if err != nil {
			return zero, err
		}
		if outcome.Kind == OutcomeSuccess {
			return value, nil
		}

		delay, retry := e.retry.Decide(attempt, outcome, mutating)
		if !retry {
			return zero, failureFromOutcome(outcome, attempt+1)
		}

		if e.onRetry != nil {
			e.onRetry(attempt, outcome, delay)
		}
		// The backoff sleep happens outside the queue slot so other
		// requests can proceed while this one backs off.
		if err := e.clock.Sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

// Execute runs an operation that yields no value.
func (e *Executor) Execute(ctx context.Context, mutating bool, op func(context.Context) error) error {
	_, err := Do(ctx, e, mutating, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// runAttempt performs one queue turn: breaker check, credit acquisition,
// operation, classification, breaker update. The returned error is
// non-nil only for cancellation or a closed queue; every other result is
// reported through the Outcome.
func (e *Executor) runAttempt(ctx context.Context, run func(context.Context) Outcome) (Outcome, error) {
	release, err := e.queue.Acquire(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	// An open circuit rejects before a rate-limit credit is consumed and
	// without counting as a breaker failure.
	if err := e.breaker.Allow(); err != nil {
		return Fatal(FailureCircuitOpen, "backend temporarily disabled", err), nil
	}

	if err := e.bucket.Acquire(ctx); err != nil {
		e.breaker.Abandon()
		return Outcome{}, err
	}

	start := e.clock.Now()
	outcome := run(ctx)

	// A failure caused by the caller's own cancellation says nothing
	// about backend health: unwind with the context error and no breaker
	// record, as at the other suspension points.
	if outcome.Kind != OutcomeSuccess {
		if ctxErr := ctx.Err(); ctxErr != nil {
			e.breaker.Abandon()
			return Outcome{}, ctxErr
		}
	}

	if e.onAttempt != nil {
		e.onAttempt(outcome, e.clock.Now().Sub(start))
	}

	if outcome.Kind == OutcomeSuccess {
		e.breaker.Success()
	} else {
		e.breaker.Failure()
	}
	return outcome, nil
}

func failureFromOutcome(o Outcome, attempts int) *Failure {
	return &Failure{
		Class:      o.Class,
		Reason:     o.Reason,
		Retryable:  o.Kind == OutcomeRetryable,
		RetryAfter: o.RetryAfter,
		Attempts:   attempts,
		Err:        o.Err,
	}
}

// Queue returns the executor's request queue.
func (e *Executor) Queue() *Queue { return e.queue }

// Bucket returns the executor's token bucket.
func (e *Executor) Bucket() *TokenBucket { return e.bucket }

// Breaker returns the executor's circuit breaker.
func (e *Executor) Breaker() *CircuitBreaker { return e.breaker }
