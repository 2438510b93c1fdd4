// Package queue carries finished-run results from the turn engine to
// the board workers. The queue is bounded and non-blocking on enqueue:
// under backpressure the caller keeps the result and may retry.
package queue

import (
	"context"
	"sync"

	"github.com/okian/medley/internal/domain/model"
	"github.com/okian/medley/pkg/metrics"
)

// Default queue configuration constants.
const defaultCapacity = 10000

// Result is the payload type flowing through the queue.
type Result = model.RunResult

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds a result; returns false when the queue is full or
	// closed.
	Enqueue(ctx context.Context, r Result) bool

	// Dequeue returns the channel workers consume from. It is closed
	// when the queue closes.
	Dequeue(ctx context.Context) <-chan Result

	// Len returns the number of queued results.
	Len(ctx context.Context) int

	// Close stops the queue; no further enqueues succeed.
	Close() error
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	results  chan Result
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.results = make(chan Result, q.capacity)
	metrics.UpdateResultQueueSize(0)
	return q
}

// Enqueue adds a result to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r Result) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordResultQueueDrop("closed")
		return false
	}

	select {
	case q.results <- r:
		metrics.UpdateResultQueueSize(len(q.results))
		return true
	case <-ctx.Done():
		metrics.RecordResultQueueDrop("context_cancelled")
		return false
	default:
		metrics.RecordResultQueueDrop("full")
		return false
	}
}

// Dequeue returns the consumption channel.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Result {
	return q.results
}

// Len returns the number of queued results.
func (q *InMemoryQueue) Len(_ context.Context) int {
	n := len(q.results)
	metrics.UpdateResultQueueSize(n)
	return n
}

// Close stops the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.results)
	q.closed = true
	return nil
}
