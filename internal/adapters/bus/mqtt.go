package bus

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/okian/falcongrasp/internal/config"
	"github.com/okian/falcongrasp/pkg/logger"
)

const (
	connectRetryInterval = 2 * time.Second
	maxReconnectInterval = 30 * time.Second
	disconnectQuiesce    = 250 // ms
)

// MQTTTransport implements Transport on an MQTT broker.
type MQTTTransport struct {
	cfg      config.MQTTConfig
	clientID string
	client   mqtt.Client
	log      logger.Logger
}

// NewMQTTTransport returns a transport for cfg. role prefixes the generated
// client id when cfg.ClientID is empty, e.g. "falcongrasp-game".
func NewMQTTTransport(cfg config.MQTTConfig, role string) *MQTTTransport {
	id := cfg.ClientID
	if id == "" {
		id = role + "-" + uuid.NewString()[:8]
	}
	return &MQTTTransport{
		cfg:      cfg,
		clientID: id,
		log:      logger.Get().Named("mqtt"),
	}
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Connect dials the broker. The client keeps retrying in the background
// after a timeout, and Hooks.OnConnect fires once it succeeds.
func (t *MQTTTransport) Connect(ctx context.Context, hooks Hooks) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(t.cfg.Broker))
	opts.SetClientID(t.clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(connectRetryInterval)
	opts.SetMaxReconnectInterval(maxReconnectInterval)

	opts.OnConnect = func(mqtt.Client) {
		t.log.Info(ctx, "mqtt connection established",
			logger.String("broker", t.cfg.Broker),
			logger.String("client_id", t.clientID),
		)
		if hooks.OnConnect != nil {
			hooks.OnConnect()
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		t.log.Warn(ctx, "mqtt connection lost, will auto-reconnect",
			logger.String("broker", t.cfg.Broker),
			logger.Error(err),
		)
		if hooks.OnConnectionLost != nil {
			hooks.OnConnectionLost(err)
		}
	}

	t.client = mqtt.NewClient(opts)
	t.log.Info(ctx, "connecting to mqtt broker", logger.String("broker", t.cfg.Broker))

	if err := wait(ctx, t.client.Connect(), t.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnectTimeout, t.cfg.Broker, err)
	}
	return nil
}

// Subscribe subscribes every topic with the configured QoS.
func (t *MQTTTransport) Subscribe(ctx context.Context, topics []string, fn MessageFunc) error {
	if t.client == nil || !t.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	filters := make(map[string]byte, len(topics))
	for _, topic := range topics {
		filters[topic] = byte(t.cfg.QoS)
	}
	token := t.client.SubscribeMultiple(filters, func(_ mqtt.Client, msg mqtt.Message) {
		fn(msg.Topic(), string(msg.Payload()))
	})
	if err := wait(ctx, token, t.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("subscribe %v: %w", topics, err)
	}
	return nil
}

// Unsubscribe drops the given topics.
func (t *MQTTTransport) Unsubscribe(ctx context.Context, topics ...string) error {
	if t.client == nil || !t.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	if err := wait(ctx, t.client.Unsubscribe(topics...), t.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("unsubscribe %v: %w", topics, err)
	}
	return nil
}

// Publish sends a non-retained message.
func (t *MQTTTransport) Publish(ctx context.Context, topic, payload string) error {
	if t.client == nil || !t.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := t.client.Publish(topic, byte(t.cfg.QoS), false, payload)
	if err := wait(ctx, token, t.cfg.PublishTimeout); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Disconnect closes the connection.
func (t *MQTTTransport) Disconnect() {
	if t.client != nil && t.client.IsConnected() {
		t.client.Disconnect(disconnectQuiesce)
		t.log.Info(context.Background(), "mqtt disconnected")
	}
}

func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTimeout
	}
}
