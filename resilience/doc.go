// Package resilience guards access to rate-limited remote APIs.
//
// This package implements the coordination layer between a caller and a
// backend with strict, externally-imposed constraints: at most a fixed
// number of requests in flight (typically one), a hard cap on requests
// per time window, and occasional sustained outages. The pieces can be
// used independently, but are designed to be composed by an Executor.
//
// # Components
//
// The package provides the following components:
//
//   - Token Bucket: Enforces an average request rate while permitting
//     bounded bursts. Credits refill lazily from elapsed time, so the
//     bucket stays correct across arbitrary idle periods.
//
//   - Circuit Breaker: Stops sending requests to a failing backend after
//     a threshold of consecutive failures, then probes for recovery.
//
//   - Retry Policy: Decides, from an attempt number and a classified
//     failure, whether to retry and how long to back off. Mutating
//     operations are never retried.
//
//   - Queue: Serializes concurrent requests down to a configured number
//     of slots with strict FIFO admission.
//
//   - Executor: Composes the above into one pipeline: queue admission,
//     breaker check, token acquisition, operation, classification,
//     breaker update, retry decision.
//
// # Usage
//
// Construct one Executor per backend target and run operations through it:
//
//	exec := resilience.NewExecutor(resilience.ExecutorConfig{
//	    Queue:   resilience.NewQueue(resilience.QueueConfig{Slots: 1}),
//	    Bucket:  resilience.NewTokenBucket(resilience.TokenBucketConfig{Capacity: 100, RefillRate: 10}),
//	    Breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 5}),
//	    Retry:   resilience.NewRetryPolicy(resilience.RetryConfig{MaxRetries: 3}),
//	    Classifier: myClassifier,
//	})
//
//	resp, err := resilience.Do(ctx, exec, false, func(ctx context.Context) (*Response, error) {
//	    return callBackend(ctx)
//	})
//
// Deadlines and cancellation propagate through the operation's context;
// a caller-supplied deadline aborts a request while it is queued, waiting
// for a rate-limit credit, or sleeping between attempts.
package resilience
