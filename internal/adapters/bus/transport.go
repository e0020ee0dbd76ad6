package bus

import "context"

// MessageFunc receives every message on a subscribed topic.
type MessageFunc func(topic, payload string)

// Hooks are called by the transport on connection changes. OnConnect runs
// after every successful connect, including automatic reconnects.
type Hooks struct {
	OnConnect        func()
	OnConnectionLost func(err error)
}

// Transport is the pub/sub client underneath the Bus.
type Transport interface {
	Connect(ctx context.Context, hooks Hooks) error
	Subscribe(ctx context.Context, topics []string, fn MessageFunc) error
	Unsubscribe(ctx context.Context, topics ...string) error
	Publish(ctx context.Context, topic, payload string) error
	Disconnect()
}
