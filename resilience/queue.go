package resilience

import (
	"context"
	"sync"
)

// QueueConfig configures the request queue.
type QueueConfig struct {
	// Slots is the maximum number of operations executing concurrently.
	// Default: 1
	Slots int
}

// Queue caps the number of operations executing concurrently, admitting
// waiters in strict FIFO order. Acquire never rejects a request while the
// queue is running; it only ever makes the caller wait. Close fails all
// pending waiters with ErrQueueClosed.
type Queue struct {
	config QueueConfig

	mu       sync.Mutex
	inFlight int
	waiters  []*queueWaiter
	closed   bool
}

type queueWaiter struct {
	ready chan error
}

// NewQueue creates a new request queue.
func NewQueue(config QueueConfig) *Queue {
	// Apply defaults
	if config.Slots <= 0 {
		config.Slots = 1
	}

	return &Queue{config: config}
}

// Acquire waits for a turn and returns a release function that must be
// called exactly once when the turn is over. It returns ErrQueueClosed if
// the queue has been (or is) shut down, or the context error if the caller
// is cancelled while waiting. A cancelled waiter never leaks a slot.
func (q *Queue) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	if len(q.waiters) == 0 && q.inFlight < q.config.Slots {
		q.inFlight++
		q.mu.Unlock()
		return q.releaseOnce(), nil
	}
	w := &queueWaiter{ready: make(chan error, 1)}
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()

	select {
	case err := <-w.ready:
		if err != nil {
			return nil, err
		}
		return q.releaseOnce(), nil
	case <-ctx.Done():
		q.mu.Lock()
		for i, other := range q.waiters {
			if other == w {
				q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
				q.mu.Unlock()
				return nil, ctx.Err()
			}
		}
		q.mu.Unlock()
		// Already signalled: either granted a slot or failed by Close.
		if err := <-w.ready; err == nil {
			q.release()
		}
		return nil, ctx.Err()
	}
}

// Close shuts the queue down. Pending waiters fail with ErrQueueClosed and
// later Acquire calls fail immediately. In-flight operations may still
// call their release functions.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	waiters := q.waiters
	q.waiters = nil
	q.mu.Unlock()

	for _, w := range waiters {
		w.ready <- ErrQueueClosed
	}
}

// releaseOnce guards against double release of a single turn.
func (q *Queue) releaseOnce() func() {
	var once sync.Once
	return func() {
		once.Do(q.release)
	}
}

// release hands the slot to the oldest waiter, or frees it when none are
// waiting.
func (q *Queue) release() {
	q.mu.Lock()
	if len(q.waiters) > 0 {
		w := q.waiters[0]
		q.waiters = q.waiters[1:]
		q.mu.Unlock()
		w.ready <- nil
		return
	}
	q.inFlight--
	q.mu.Unlock()
}

// Waiting returns the number of requests waiting for a turn.
func (q *Queue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}

// InFlight returns the number of requests currently holding a slot.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}
