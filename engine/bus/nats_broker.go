package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

// NATSBroker adapts core NATS pub/sub (not JetStream) to the Broker
// contract. Events are JSON-encoded onto the channel name used verbatim as
// the NATS subject.
type NATSBroker struct {
	url  string
	opts []nats.Option

	mu   sync.Mutex
	conn *nats.Conn
	subs map[string]*nats.Subscription
	msgs chan natsEnvelope
}

type natsEnvelope struct {
	channel string
	event   Event
}

// NewNATSBroker constructs a NATSBroker that will dial url on Connect.
func NewNATSBroker(url string, opts ...nats.Option) *NATSBroker {
	return &NATSBroker{
		url:  url,
		opts: opts,
		subs: make(map[string]*nats.Subscription),
		msgs: make(chan natsEnvelope, 1024),
	}
}

func (b *NATSBroker) Connect(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil && b.conn.IsConnected() {
		return nil
	}
	conn, err := nats.Connect(b.url, b.opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}
	b.conn = conn
	return nil
}

func (b *NATSBroker) Disconnect(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch, sub := range b.subs {
		_ = sub.Unsubscribe()
		delete(b.subs, ch)
	}
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	return nil
}

func (b *NATSBroker) Subscribe(_ context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return ErrBrokerDisconnected
	}
	if _, ok := b.subs[channel]; ok {
		return nil
	}
	sub, err := b.conn.Subscribe(channel, func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		b.msgs <- natsEnvelope{channel: channel, event: ev}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	b.subs[channel] = sub
	return nil
}

func (b *NATSBroker) Unsubscribe(_ context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[channel]
	if !ok {
		return nil
	}
	delete(b.subs, channel)
	return sub.Unsubscribe()
}

func (b *NATSBroker) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return ErrBrokerDisconnected
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := conn.Publish(ev.Channel, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (b *NATSBroker) Next(ctx context.Context) (string, Event, error) {
	select {
	case env, ok := <-b.msgs:
		if !ok {
			return "", Event{}, ErrBrokerDisconnected
		}
		return env.channel, env.event, nil
	case <-ctx.Done():
		return "", Event{}, ctx.Err()
	}
}
