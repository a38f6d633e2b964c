// Package queue provides a bounded buffered queue for landing documents with backpressure support
package queue

import (
	"context"
	"sync"

	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/types"
)

// Queue represents a bounded buffered channel for documents
// When the queue is full, Enqueue blocks, providing backpressure
type Queue struct {
	docs    chan *types.Document
	done    chan struct{}
	size    int
	metrics *obs.Metrics
	once    sync.Once
}

// NewQueue creates a new Queue with the specified buffer size
// The queue will block on Enqueue when full, providing backpressure
func NewQueue(size int, metrics *obs.Metrics) *Queue {
	q := &Queue{
		docs:    make(chan *types.Document, size),
		done:    make(chan struct{}),
		size:    size,
		metrics: metrics,
	}

	// Initialize queue depth metric to 0
	if metrics != nil {
		metrics.NullifyQueueDepth()
	}

	return q
}

// Enqueue adds a document to the queue
// This operation blocks if the queue is full (backpressure)
// Returns an error if the context is cancelled or the queue is closed
func (q *Queue) Enqueue(ctx context.Context, doc *types.Document) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.docs <- doc:
		if q.metrics != nil {
			q.metrics.IncrementQueueDepth()
			q.metrics.IncrementDocumentsReceived()
		}
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue removes and returns a document from the queue
// This operation blocks if the queue is empty
// Returns an error if the context is cancelled or the queue is closed
// Documents buffered before Close are still handed out.
func (q *Queue) Dequeue(ctx context.Context) (*types.Document, error) {
	select {
	case doc := <-q.docs:
		return q.dequeued(doc), nil
	default:
	}

	select {
	case doc := <-q.docs:
		return q.dequeued(doc), nil
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Queue) dequeued(doc *types.Document) *types.Document {
	if q.metrics != nil {
		q.metrics.DecrementQueueDepth()
	}
	return doc
}

// Depth returns the current number of documents waiting in the queue
func (q *Queue) Depth() int {
	return len(q.docs)
}

// Cap returns the queue capacity
func (q *Queue) Cap() int {
	return q.size
}

// Close stops the queue from accepting documents.
// The document channel stays open so a racing Enqueue cannot panic; Dequeue
// drains what is buffered and then reports ErrQueueClosed.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.done)
	})
}

// Errors
var (
	ErrQueueClosed = &QueueError{msg: "queue is closed"}
)

// QueueError represents a queue operation error
type QueueError struct {
	msg string
}

func (e *QueueError) Error() string {
	return e.msg
}
