// Package queue is the bounded hand-off between bus callbacks and the
// goroutines that apply telemetry.
package queue

import (
	"context"
	"sync"

	"github.com/okian/falcongrasp/internal/domain/model"
	"github.com/okian/falcongrasp/pkg/metrics"
)

const defaultQueueCapacity = 4096

// Message is the payload type flowing through the queue.
type Message = model.TelemetryMessage

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a message. It returns false if the queue is full or closed.
	Enqueue(ctx context.Context, m Message) bool

	// Dequeue returns a channel that receives messages in arrival order.
	// The channel is closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Message

	// Len returns the current number of queued messages.
	Len(ctx context.Context) int

	// Close stops accepting messages. Messages already queued can still be read.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	messages chan Message
	capacity int
	name     string
	quiet    bool

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		name:     "telemetry",
	}
	for _, opt := range opts {
		opt(q)
	}
	q.messages = make(chan Message, q.capacity)

	if !q.quiet {
		metrics.UpdateQueueCapacity(q.capacity)
		metrics.UpdateQueueSize(0)
	}
	return q
}

// Enqueue adds a message to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, m Message) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected(q.name + "_closed")
		return false
	}

	select {
	case q.messages <- m:
		if !q.quiet {
			metrics.RecordQueueEnqueue()
			metrics.UpdateQueueSize(len(q.messages))
		}
		return true
	case <-ctx.Done():
		metrics.RecordQueueRejected(q.name + "_cancelled")
		return false
	default:
		metrics.RecordQueueRejected(q.name + "_full")
		return false
	}
}

// Dequeue returns a channel that receives queued messages until the queue
// is closed and drained or ctx ends.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Message {
	out := make(chan Message)
	go func() {
		defer close(out)
		for m := range q.messages {
			select {
			case out <- m:
				q.dequeued()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// TryDequeue removes the oldest message if one is waiting.
func (q *InMemoryQueue) TryDequeue() (Message, bool) {
	select {
	case m, ok := <-q.messages:
		if ok {
			q.dequeued()
		}
		return m, ok
	default:
		return Message{}, false
	}
}

func (q *InMemoryQueue) dequeued() {
	if !q.quiet {
		metrics.RecordQueueDequeue()
		metrics.UpdateQueueSize(len(q.messages))
	}
}

// Len returns the current number of queued messages.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.messages)
}

// Close stops the queue. Closing twice is a no-op.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.messages)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
