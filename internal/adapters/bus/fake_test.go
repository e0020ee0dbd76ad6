package bus_test

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/okian/falcongrasp/internal/adapters/bus"
)

// fakeTransport records every call and lets tests drive connection changes
// and deliveries.
type fakeTransport struct {
	mu         sync.Mutex
	hooks      bus.Hooks
	connected  bool
	subscribed map[string]bus.MessageFunc
	ops        []string
	published  []string
	failPub    bool
	connectErr error
	// failSubs makes the next failSubs Subscribe calls fail.
	failSubs int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{subscribed: map[string]bus.MessageFunc{}}
}

func (f *fakeTransport) Connect(_ context.Context, hooks bus.Hooks) error {
	f.mu.Lock()
	f.hooks = hooks
	err := f.connectErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.up()
	return nil
}

// up simulates a (re)connect with a fresh session.
func (f *fakeTransport) up() {
	f.mu.Lock()
	f.connected = true
	f.subscribed = map[string]bus.MessageFunc{}
	hook := f.hooks.OnConnect
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (f *fakeTransport) down() {
	f.mu.Lock()
	f.connected = false
	f.subscribed = map[string]bus.MessageFunc{}
	hook := f.hooks.OnConnectionLost
	f.mu.Unlock()
	if hook != nil {
		hook(errors.New("broken pipe"))
	}
}

func (f *fakeTransport) Subscribe(_ context.Context, topics []string, fn bus.MessageFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return bus.ErrNotConnected
	}
	if f.failSubs > 0 {
		f.failSubs--
		f.ops = append(f.ops, "subfail")
		return bus.ErrTimeout
	}
	for _, t := range topics {
		f.subscribed[t] = fn
	}
	f.ops = append(f.ops, "sub:"+strings.Join(topics, ","))
	return nil
}

func (f *fakeTransport) Unsubscribe(_ context.Context, topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return bus.ErrNotConnected
	}
	for _, t := range topics {
		delete(f.subscribed, t)
	}
	f.ops = append(f.ops, "unsub:"+strings.Join(topics, ","))
	return nil
}

func (f *fakeTransport) Publish(_ context.Context, topic, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected || f.failPub {
		return bus.ErrNotConnected
	}
	f.published = append(f.published, topic+"="+payload)
	f.ops = append(f.ops, "pub:"+topic)
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

// deliver invokes the subscriber of topic, reporting whether one existed.
func (f *fakeTransport) deliver(topic, payload string) bool {
	f.mu.Lock()
	fn, ok := f.subscribed[topic]
	f.mu.Unlock()
	if ok {
		fn(topic, payload)
	}
	return ok
}

func (f *fakeTransport) isSubscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subscribed[topic]
	return ok
}

func (f *fakeTransport) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

func (f *fakeTransport) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.published...)
}

func (f *fakeTransport) count(prefix string) int {
	n := 0
	for _, op := range f.operations() {
		if strings.HasPrefix(op, prefix) {
			n++
		}
	}
	return n
}
