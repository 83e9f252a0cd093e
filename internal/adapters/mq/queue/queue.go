// Package queue carries per-driver recompute jobs from the batch producer to
// the worker pool.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/tierd/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Job is one driver to evaluate within a recompute pass.
type Job struct {
	RunID      string
	DriverID   string
	EnqueuedAt time.Time
}

// Queue provides bounded, blocking enqueue and channel-based dequeue.
type Queue interface {
	// Put blocks until the job is buffered, ctx is done or the queue is closed.
	Put(ctx context.Context, j Job) error

	// TryPut buffers the job only if there is room right now.
	TryPut(j Job) bool

	// Dequeue returns the channel jobs arrive on. It is closed after Close
	// once the buffer drains.
	Dequeue() <-chan Job

	// Len returns the number of buffered jobs.
	Len() int

	// Close stops accepting jobs.
	Close() error

	// IsClosed reports whether Close was called.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu       sync.RWMutex
	closed   bool
	done     chan struct{}
	doneOnce sync.Once
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)
	q.done = make(chan struct{})

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Put implements Queue.Put.
func (q *InMemoryQueue) Put(ctx context.Context, j Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		metrics.RecordQueueEnqueueError()
		return ErrClosed
	}

	select {
	case q.jobs <- j:
		metrics.UpdateQueueSize(len(q.jobs))
		return nil
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		return ctx.Err()
	case <-q.done:
		metrics.RecordQueueEnqueueError()
		return ErrClosed
	}
}

// TryPut implements Queue.TryPut.
func (q *InMemoryQueue) TryPut(j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		metrics.RecordQueueEnqueueError()
		return false
	}

	select {
	case q.jobs <- j:
		metrics.UpdateQueueSize(len(q.jobs))
		return true
	default:
		metrics.RecordQueueEnqueueError()
		return false
	}
}

// Dequeue implements Queue.Dequeue.
func (q *InMemoryQueue) Dequeue() <-chan Job {
	return q.jobs
}

// Len implements Queue.Len.
func (q *InMemoryQueue) Len() int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	return size
}

// Close implements Queue.Close. Buffered jobs remain readable.
func (q *InMemoryQueue) Close() error {
	// Wake blocked producers before taking the write lock they hold for reading.
	q.signalDone()

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) signalDone() {
	q.doneOnce.Do(func() { close(q.done) })
}

// IsClosed implements Queue.IsClosed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
