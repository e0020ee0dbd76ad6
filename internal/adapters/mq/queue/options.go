package queue

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum number of messages held at once.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithName labels the queue in rejection metrics, e.g. "telemetry" or "offline".
func WithName(name string) Option {
	return func(q *InMemoryQueue) {
		if name != "" {
			q.name = name
		}
	}
}

// WithoutMetrics keeps the queue out of the shared queue gauges. Used for
// secondary queues such as the bus offline buffer.
func WithoutMetrics() Option {
	return func(q *InMemoryQueue) {
		q.quiet = true
	}
}
