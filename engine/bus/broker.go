package bus

import "context"

// Broker is the pluggable transport the EventBus drains events from.
// Variants: in-process Memory, and NATS (core pub/sub, not JetStream — no
// durable delivery is required by this spec; at-least-once semantics are
// explicitly the broker's own responsibility, §5).
type Broker interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Subscribe(ctx context.Context, channel string) error
	Unsubscribe(ctx context.Context, channel string) error
	Publish(ctx context.Context, ev Event) error
	// Next blocks until an event is available on any subscribed channel, or
	// ctx is canceled / the broker is disconnected.
	Next(ctx context.Context) (channel string, ev Event, err error)
}

// ErrBrokerDisconnected is returned by Next/Publish once the broker has
// been disconnected or lost its backend connection (§7 BrokerError).
var ErrBrokerDisconnected = brokerError("broker is disconnected")

type brokerError string

func (e brokerError) Error() string { return string(e) }
