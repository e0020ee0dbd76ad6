// Package aggregator applies telemetry from the data topics to the shared
// session scores.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/falcongrasp/internal/adapters/bus"
	"github.com/okian/falcongrasp/internal/adapters/mq/queue"
	"github.com/okian/falcongrasp/internal/adapters/mq/worker"
	"github.com/okian/falcongrasp/internal/domain/model"
	"github.com/okian/falcongrasp/internal/domain/session"
	"github.com/okian/falcongrasp/pkg/logger"
	"github.com/okian/falcongrasp/pkg/metrics"
)

// ErrMalformed is returned for payloads that do not parse.
var ErrMalformed = errors.New("malformed telemetry")

// Scores is the part of the session store the aggregator writes.
type Scores interface {
	SetScore(i, score int) error
	SetTeamName(name string) error
	SetTotalScore(total int) error
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithQueueSize bounds the messages waiting to be applied.
func WithQueueSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.queueSize = n
		}
	}
}

// WithWorkers sets the number of workers. One keeps arrival order.
func WithWorkers(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// Aggregator queues telemetry from the bus and applies it on its own
// goroutines, so bus delivery never waits on the store.
type Aggregator struct {
	scores    Scores
	topics    bus.Topics
	queueSize int
	workers   int
	log       logger.Logger

	queue *queue.InMemoryQueue
	pool  *worker.Pool
}

// New builds an Aggregator writing to scores.
func New(scores Scores, topics bus.Topics, opts ...Option) *Aggregator {
	a := &Aggregator{
		scores:  scores,
		topics:  topics,
		workers: 1,
		log:     logger.Get().Named("aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	qopts := []queue.Option{queue.WithName("telemetry")}
	if a.queueSize > 0 {
		qopts = append(qopts, queue.WithCapacity(a.queueSize))
	}
	a.queue = queue.NewInMemoryQueue(qopts...)
	a.pool = worker.NewPool(a.workers, a.queue, a)
	return a
}

// Start launches the workers.
func (a *Aggregator) Start(ctx context.Context) {
	a.pool.Start(ctx)
	a.log.Info(ctx, "aggregator started", logger.Int("workers", a.workers))
}

// Shutdown stops accepting telemetry and waits for the workers.
func (a *Aggregator) Shutdown(ctx context.Context) error {
	return a.pool.Shutdown(ctx)
}

// Enqueue is the bus telemetry handler. It never blocks.
func (a *Aggregator) Enqueue(ctx context.Context, msg model.TelemetryMessage) {
	if !a.queue.Enqueue(ctx, msg) {
		metrics.RecordTelemetryRejected("queue")
		a.log.Warn(ctx, "telemetry queue rejected message", logger.String("topic", msg.Topic))
	}
}

// Pending returns the number of queued messages.
func (a *Aggregator) Pending(ctx context.Context) int { return a.queue.Len(ctx) }

// Handle applies one message to the store.
func (a *Aggregator) Handle(ctx context.Context, msg queue.Message) error {
	family, err := a.topics.Family(msg.Topic)
	if err != nil {
		metrics.RecordTelemetryRejected("topic")
		return err
	}

	switch family {
	case bus.FamilyCamera:
		idx, err := a.topics.ParseCameraIndex(msg.Topic)
		if err != nil {
			metrics.RecordTelemetryRejected("topic")
			return err
		}
		v, err := msg.Int()
		if err != nil || v < 0 {
			metrics.RecordTelemetryRejected("payload")
			return fmt.Errorf("%w: camera %d payload %q", ErrMalformed, idx, msg.Payload)
		}
		return a.apply(ctx, family, a.scores.SetScore(idx, v))

	case bus.FamilyTeam:
		name := strings.TrimSpace(msg.Payload)
		if name == "" {
			metrics.RecordTelemetryRejected("payload")
			return fmt.Errorf("%w: empty team name", ErrMalformed)
		}
		return a.apply(ctx, family, a.scores.SetTeamName(name))

	case bus.FamilyScore:
		v, err := msg.Int()
		if err != nil || v < 0 {
			metrics.RecordTelemetryRejected("payload")
			return fmt.Errorf("%w: total score %q", ErrMalformed, msg.Payload)
		}
		return a.apply(ctx, family, a.scores.SetTotalScore(v))

	default:
		metrics.RecordTelemetryRejected("topic")
		return fmt.Errorf("%w: %s", bus.ErrUnknownTopic, msg.Topic)
	}
}

// apply classifies the store result. Writes after the round closed are
// expected stragglers and are dropped quietly.
func (a *Aggregator) apply(ctx context.Context, family string, err error) error {
	switch {
	case err == nil:
		metrics.RecordTelemetryApplied(family)
		return nil
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrSessionClosed):
		metrics.RecordTelemetryRejected("closed")
		a.log.Debug(ctx, "telemetry outside a round ignored", logger.String("family", family))
		return nil
	case errors.Is(err, session.ErrPlayerIndex):
		metrics.RecordTelemetryRejected("index")
		return err
	default:
		return err
	}
}
