package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Common errors returned by the Queue
var (
	ErrQueueClosed = errors.New("dispatch queue is closed")
	ErrQueueFull   = errors.New("dispatch queue is full")
)

type envelope struct {
	job     Job
	pending *Pending
}

// Queue is a bounded FIFO of jobs. Sends and Close are serialized so a send
// never races a close.
type Queue struct {
	mu     sync.RWMutex
	jobs   chan envelope
	logger *slog.Logger
	closed bool
}

// NewQueue creates a queue with the specified buffer size.
func NewQueue(size int, logger *slog.Logger) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		jobs:   make(chan envelope, size),
		logger: logger,
	}
}

// TryEnqueue adds env without blocking. It fails with ErrQueueFull when the
// buffer is full.
func (q *Queue) TryEnqueue(env envelope) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- env:
		q.logEnqueued(env)
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.jobs))
	}
}

// Enqueue adds env, waiting for buffer space until ctx is done.
func (q *Queue) Enqueue(ctx context.Context, env envelope) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- env:
		q.logEnqueued(env)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) logEnqueued(env envelope) {
	q.logger.Debug("job enqueued",
		"job_id", env.job.ID(),
		"job_type", env.job.Type(),
		"queue_len", len(q.jobs),
		"queue_cap", cap(q.jobs))
}

// Close stops accepting jobs. Jobs already buffered are still delivered to
// readers of the channel.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.jobs)
		q.logger.Info("dispatch queue closed")
	}
}

// Len returns the number of buffered jobs.
func (q *Queue) Len() int {
	return len(q.jobs)
}

func (q *Queue) channel() <-chan envelope {
	return q.jobs
}
