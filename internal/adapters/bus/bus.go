// Package bus carries telemetry and game-control commands between the
// vision nodes, the game node and the presentation layer.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/okian/falcongrasp/internal/adapters/mq/queue"
	"github.com/okian/falcongrasp/internal/domain/model"
	"github.com/okian/falcongrasp/pkg/logger"
	"github.com/okian/falcongrasp/pkg/metrics"
)

const (
	defaultCommandBuffer = 32
	defaultOfflineBuffer = 1024
	resubscribeTimeout   = 10 * time.Second
	defaultRetryInterval = 2 * time.Second
)

// ControlHandler receives decoded commands, one at a time, in arrival order.
type ControlHandler func(ctx context.Context, msg model.ControlMessage)

// TelemetryHandler receives data-topic messages while data is subscribed.
// It runs on the transport's delivery goroutine and must not block.
type TelemetryHandler func(ctx context.Context, msg model.TelemetryMessage)

// Status is a point-in-time view of the bus.
type Status struct {
	Connected      bool `json:"connected"`
	DataSubscribed bool `json:"data_subscribed"`
	Buffered       int  `json:"buffered"`
}

// Option configures a Bus.
type Option func(*Bus)

// WithCameras sets how many camera topics the data subscription covers.
func WithCameras(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.cameras = n
		}
	}
}

// WithControlKinds limits the control subscription to kinds.
func WithControlKinds(kinds ...model.ControlKind) Option {
	return func(b *Bus) {
		if len(kinds) > 0 {
			b.controlKinds = kinds
		}
	}
}

// WithOfflineBuffer bounds the telemetry held while disconnected.
func WithOfflineBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.offlineSize = n
		}
	}
}

// WithRetryInterval sets the pause between control subscription attempts
// after a connect.
func WithRetryInterval(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.retryInterval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.log = l
		}
	}
}

// Bus layers the subscription discipline of the game over a Transport:
// control topics for the whole connection, data topics only on request,
// both restored after a reconnect with control first.
type Bus struct {
	transport     Transport
	topics        Topics
	cameras       int
	controlKinds  []model.ControlKind
	offlineSize   int
	retryInterval time.Duration
	log           logger.Logger

	// subMu serialises subscription changes; mu guards the flags below and
	// is never held across transport calls.
	subMu      sync.Mutex
	mu         sync.RWMutex
	connected  bool
	connects   int
	losses     int
	dataWanted bool
	dataActive bool
	control    []ControlHandler
	telemetry  []TelemetryHandler

	buffer   *queue.InMemoryQueue
	commands chan model.ControlMessage
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New builds a Bus rooted at topics.
func New(t Transport, topics Topics, opts ...Option) *Bus {
	b := &Bus{
		transport:     t,
		topics:        topics,
		cameras:       4,
		offlineSize:   defaultOfflineBuffer,
		retryInterval: defaultRetryInterval,
		log:           logger.Get().Named("bus"),
		commands:      make(chan model.ControlMessage, defaultCommandBuffer),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.buffer = queue.NewInMemoryQueue(
		queue.WithCapacity(b.offlineSize),
		queue.WithName("offline"),
		queue.WithoutMetrics(),
	)
	return b
}

// Topics returns the topic builder.
func (b *Bus) Topics() Topics { return b.topics }

// OnControl registers h for every decoded command. Register before Connect.
func (b *Bus) OnControl(h ControlHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.control = append(b.control, h)
}

// OnTelemetry registers h for data-topic messages. Register before Connect.
func (b *Bus) OnTelemetry(h TelemetryHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.telemetry = append(b.telemetry, h)
}

// Connect starts command dispatch and dials the transport. A broker that
// is not reachable yet is logged, not returned: the transport keeps
// retrying and the subscriptions are made once it connects.
func (b *Bus) Connect(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.wg.Add(1)
	go b.dispatch()

	err := b.transport.Connect(b.ctx, Hooks{
		OnConnect:        b.handleConnect,
		OnConnectionLost: b.handleConnectionLost,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConnectTimeout):
		b.log.Warn(ctx, "broker not reachable yet, retrying in background", logger.Error(err))
		return nil
	default:
		b.cancel()
		b.wg.Wait()
		return fmt.Errorf("bus connect: %w", err)
	}
}

// Close stops dispatch and disconnects.
func (b *Bus) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	b.transport.Disconnect()
	b.setConnected(false)
}

// handleConnect restores the subscriptions, control first. The control
// subscription is retried until it succeeds, the connection drops again or
// the bus closes; until then the bus stays disconnected.
func (b *Bus) handleConnect() {
	b.mu.RLock()
	losses := b.losses
	b.mu.RUnlock()

	if err := b.subscribeControl(losses); err != nil {
		b.log.Error(b.ctx, "control subscription abandoned", logger.Error(err))
		return
	}

	b.subMu.Lock()
	defer b.subMu.Unlock()

	ctx, cancel := context.WithTimeout(b.ctx, resubscribeTimeout)
	defer cancel()

	b.mu.Lock()
	wasReconnect := b.connects > 0
	b.connects++
	b.connected = true
	wanted := b.dataWanted
	b.mu.Unlock()
	metrics.UpdateBusConnected(true)
	if wasReconnect {
		metrics.RecordBusReconnect()
	}

	if wanted {
		if err := b.transport.Subscribe(ctx, b.topics.DataTopics(b.cameras), b.receive); err != nil {
			b.log.Error(ctx, "data resubscription failed", logger.Error(err))
		} else {
			b.setDataActive(true)
			b.log.Info(ctx, "data topics restored after reconnect")
		}
	}

	b.flush(ctx)
}

func (b *Bus) subscribeControl(losses int) error {
	policy := backoff.WithContext(backoff.NewConstantBackOff(b.retryInterval), b.ctx)
	op := func() error {
		b.mu.RLock()
		stale := b.losses != losses
		b.mu.RUnlock()
		if stale {
			return backoff.Permanent(ErrNotConnected)
		}
		ctx, cancel := context.WithTimeout(b.ctx, resubscribeTimeout)
		defer cancel()
		return b.transport.Subscribe(ctx, b.topics.ControlTopics(b.controlKinds...), b.receive)
	}
	return backoff.RetryNotify(op, policy, func(err error, next time.Duration) {
		b.log.Warn(b.ctx, "control subscription failed, retrying",
			logger.Duration("in", next),
			logger.Error(err),
		)
	})
}

func (b *Bus) handleConnectionLost(error) {
	b.mu.Lock()
	b.losses++
	b.connected = false
	b.dataActive = false
	b.mu.Unlock()
	metrics.UpdateBusConnected(false)
	metrics.UpdateBusDataSubscribed(false)
}

func (b *Bus) setConnected(on bool) {
	b.mu.Lock()
	b.connected = on
	b.mu.Unlock()
	metrics.UpdateBusConnected(on)
}

func (b *Bus) setDataActive(on bool) {
	b.mu.Lock()
	b.dataActive = on
	b.mu.Unlock()
	metrics.UpdateBusDataSubscribed(on)
}

// SubscribeData subscribes the data topics. Calling it while subscribed is
// a no-op. While disconnected the request is remembered and applied on connect.
func (b *Bus) SubscribeData(ctx context.Context) error {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	b.mu.Lock()
	if b.dataWanted {
		b.mu.Unlock()
		return nil
	}
	b.dataWanted = true
	connected := b.connected
	b.mu.Unlock()

	if !connected {
		b.log.Warn(ctx, "data subscription deferred until connected")
		return nil
	}
	if err := b.transport.Subscribe(ctx, b.topics.DataTopics(b.cameras), b.receive); err != nil {
		return fmt.Errorf("subscribe data: %w", err)
	}
	b.setDataActive(true)
	b.log.Info(ctx, "subscribed to data topics")
	return nil
}

// UnsubscribeData drops the data topics. Calling it while unsubscribed is a
// no-op. Data arriving afterwards is discarded even if the transport call fails.
func (b *Bus) UnsubscribeData(ctx context.Context) error {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	b.mu.Lock()
	if !b.dataWanted {
		b.mu.Unlock()
		return nil
	}
	b.dataWanted = false
	active := b.dataActive && b.connected
	b.dataActive = false
	b.mu.Unlock()
	metrics.UpdateBusDataSubscribed(false)

	if !active {
		return nil
	}
	if err := b.transport.Unsubscribe(ctx, b.topics.DataTopics(b.cameras)...); err != nil {
		return fmt.Errorf("unsubscribe data: %w", err)
	}
	b.log.Info(ctx, "unsubscribed from data topics")
	return nil
}

// DataSubscribed reports whether data topics are currently requested.
func (b *Bus) DataSubscribed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dataWanted
}

// Status returns the connection and subscription state.
func (b *Bus) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Status{
		Connected:      b.connected,
		DataSubscribed: b.dataWanted,
		Buffered:       b.buffer.Len(context.Background()),
	}
}

// Publish sends telemetry. While disconnected, or when the send fails, the
// message is held in the offline buffer and sent after the next connect.
func (b *Bus) Publish(ctx context.Context, msg model.TelemetryMessage) error {
	b.mu.RLock()
	connected := b.connected
	b.mu.RUnlock()

	if connected {
		err := b.transport.Publish(ctx, msg.Topic, msg.Payload)
		if err == nil {
			b.recordPublished(msg.Topic)
			return nil
		}
		metrics.RecordBusPublishError()
		b.log.Warn(ctx, "publish failed, buffering", logger.String("topic", msg.Topic), logger.Error(err))
	}
	return b.hold(ctx, msg)
}

func (b *Bus) hold(ctx context.Context, msg model.TelemetryMessage) error {
	if !b.buffer.Enqueue(ctx, msg) {
		b.log.Warn(ctx, "offline buffer full, dropping telemetry", logger.String("topic", msg.Topic))
		return ErrBufferFull
	}
	metrics.UpdateBusBuffered(b.buffer.Len(ctx))
	return nil
}

// PublishControl sends a command. Commands are never buffered: a stale
// start or stop replayed later would be wrong.
func (b *Bus) PublishControl(ctx context.Context, kind model.ControlKind, payload string) error {
	b.mu.RLock()
	connected := b.connected
	b.mu.RUnlock()
	if !connected {
		return fmt.Errorf("%w: %s", ErrNotConnected, kind)
	}
	topic := b.topics.Control(kind)
	if err := b.transport.Publish(ctx, topic, payload); err != nil {
		metrics.RecordBusPublishError()
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	metrics.RecordBusPublished(FamilyControl)
	return nil
}

func (b *Bus) flush(ctx context.Context) {
	n := b.buffer.Len(ctx)
	for i := 0; i < n; i++ {
		msg, ok := b.buffer.TryDequeue()
		if !ok {
			break
		}
		if err := b.transport.Publish(ctx, msg.Topic, msg.Payload); err != nil {
			metrics.RecordBusPublishError()
			_ = b.hold(ctx, msg)
			b.log.Warn(ctx, "flush interrupted", logger.Error(err))
			break
		}
		b.recordPublished(msg.Topic)
	}
	metrics.UpdateBusBuffered(b.buffer.Len(ctx))
	if n > 0 {
		b.log.Info(ctx, "flushed buffered telemetry", logger.Int("count", n))
	}
}

func (b *Bus) recordPublished(topic string) {
	family, err := b.topics.Family(topic)
	if err != nil {
		family = "other"
	}
	metrics.RecordBusPublished(family)
}

// receive runs on the transport's delivery goroutine.
func (b *Bus) receive(topic, payload string) {
	ctx := b.ctx
	family, err := b.topics.Family(topic)
	if err != nil {
		b.log.Debug(ctx, "ignoring message", logger.String("topic", topic))
		return
	}
	metrics.RecordBusReceived(family)

	if family == FamilyControl {
		msg, err := b.topics.ParseControl(topic, payload)
		if err != nil {
			b.log.Warn(ctx, "rejecting control message", logger.String("topic", topic), logger.Error(err))
			return
		}
		select {
		case b.commands <- msg:
		default:
			b.log.Warn(ctx, "command queue full, dropping command", logger.String("kind", msg.Kind.String()))
		}
		return
	}

	b.mu.RLock()
	wanted := b.dataWanted
	handlers := b.telemetry
	b.mu.RUnlock()
	if !wanted {
		return
	}
	msg := model.TelemetryMessage{Topic: topic, Payload: payload}
	for _, h := range handlers {
		h(ctx, msg)
	}
}

func (b *Bus) dispatch() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg := <-b.commands:
			b.log.Info(b.ctx, "control command received",
				logger.String("kind", msg.Kind.String()),
				logger.String("payload", msg.Payload),
			)
			b.mu.RLock()
			handlers := b.control
			b.mu.RUnlock()
			for _, h := range handlers {
				h(b.ctx, msg)
			}
		}
	}
}
