// Package queue holds scoring jobs between the batch driver and the worker pool.
package queue

import (
	"context"
	"sync"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/metrics"
)

const defaultCapacity = 1024

// Queue is a bounded FIFO of scoring jobs.
type Queue interface {
	// Enqueue blocks until the job is queued, ctx is done or the queue is closed.
	Enqueue(ctx context.Context, job model.Job) error
	// TryEnqueue queues the job only if there is room right now.
	TryEnqueue(job model.Job) error
	// Dequeue returns the channel consumers read from. It is closed by Close
	// once every queued job has been handed out.
	Dequeue() <-chan model.Job
	Len() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	jobs     chan model.Job
	capacity int

	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a queue with the configured capacity.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan model.Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, job model.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		metrics.RecordEnqueueFailure("closed")
		return ErrClosed
	}

	select {
	case q.jobs <- job:
		metrics.UpdateQueueSize(len(q.jobs))
		return nil
	case <-q.done:
		metrics.RecordEnqueueFailure("closed")
		return ErrClosed
	case <-ctx.Done():
		metrics.RecordEnqueueFailure("context_cancelled")
		return ctx.Err()
	}
}

func (q *InMemoryQueue) TryEnqueue(job model.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		metrics.RecordEnqueueFailure("closed")
		return ErrClosed
	}

	select {
	case q.jobs <- job:
		metrics.UpdateQueueSize(len(q.jobs))
		return nil
	default:
		metrics.RecordEnqueueFailure("queue_full")
		return ErrFull
	}
}

func (q *InMemoryQueue) Dequeue() <-chan model.Job {
	return q.jobs
}

func (q *InMemoryQueue) Len() int {
	n := len(q.jobs)
	metrics.UpdateQueueSize(n)
	return n
}

// Close stops new jobs. Jobs already queued are still delivered.
func (q *InMemoryQueue) Close() error {
	q.closeOnce.Do(func() {
		// Unblock waiting producers before taking the write lock.
		close(q.done)

		q.mu.Lock()
		defer q.mu.Unlock()
		q.closed = true
		close(q.jobs)
	})
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
