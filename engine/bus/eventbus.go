package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fluxweave/fluxweave/pkg/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/fluxweave/fluxweave/engine/bus")

// EventBus is the process-wide pub/sub hub (§4.5): it owns the broker
// connection, dispatches inbound events to registered callbacks, and hands
// out scoped EventStream subscriptions to any component that wants its own
// view of a channel.
type EventBus struct {
	broker    Broker
	callbacks *CallbackGroup

	mu          sync.Mutex
	connected   bool
	streams     map[string][]*EventStream // channel -> streams (includes $ALL)
	cancelReads context.CancelFunc
	consumeWG   sync.WaitGroup
}

// NewEventBus constructs an EventBus over the given broker and callback
// group. The callback group's channels are subscribed to on Connect.
func NewEventBus(broker Broker, callbacks *CallbackGroup) *EventBus {
	if callbacks == nil {
		callbacks = NewCallbackGroup()
	}
	return &EventBus{
		broker:    broker,
		callbacks: callbacks,
		streams:   make(map[string][]*EventStream),
	}
}

// Connect opens the broker, subscribes to every channel with a registered
// callback, and starts the single consumer task that drains broker.Next()
// and multicasts into subscribed streams plus registered callbacks.
func (b *EventBus) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connected {
		return nil
	}
	if err := b.broker.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect broker: %w", err)
	}
	for _, ch := range b.callbacks.Channels() {
		if err := b.broker.Subscribe(ctx, ch); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", ch, err)
		}
	}
	consumeCtx, cancel := context.WithCancel(ctx)
	b.cancelReads = cancel
	b.connected = true
	b.consumeWG.Add(1)
	go b.consume(consumeCtx)
	return nil
}

// Disconnect stops the consumer task, closes every outstanding stream with
// an EndOfStream, and disconnects the broker (§5: "the event bus closes all
// streams by posting an EndOfStream, terminates its consumer/reader tasks,
// and disconnects the broker").
func (b *EventBus) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return nil
	}
	b.connected = false
	cancel := b.cancelReads
	streams := b.streams
	b.streams = make(map[string][]*EventStream)
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.consumeWG.Wait()
	for _, list := range streams {
		for _, s := range list {
			s.Close()
		}
	}
	return b.broker.Disconnect(ctx)
}

func (b *EventBus) consume(ctx context.Context) {
	defer b.consumeWG.Done()
	log := logger.FromContext(ctx)
	for {
		channel, ev, err := b.broker.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("event bus broker read failed", "error", err)
			return
		}
		b.dispatch(ctx, channel, ev)
	}
}

// dispatch multicasts ev to every EventStream subscribed to channel or
// "$ALL", then invokes every matching registered callback sequentially
// (per-channel FIFO, §5).
func (b *EventBus) dispatch(ctx context.Context, channel string, ev Event) {
	b.mu.Lock()
	targets := append([]*EventStream{}, b.streams[channel]...)
	targets = append(targets, b.streams[WildcardChannel]...)
	b.mu.Unlock()
	for _, s := range targets {
		_ = s.Send(ctx, ev)
	}
	b.runCallbacks(ctx, channel, ev)
}

func (b *EventBus) runCallbacks(ctx context.Context, channel string, ev Event) {
	log := logger.FromContext(ctx)
	for _, cb := range b.callbacks.Matching(channel, ev.Type) {
		start := time.Now()
		spanCtx := parentFromTraceParent(ctx, ev.TraceParent)
		spanCtx, span := tracer.Start(spanCtx, "bus.callback")
		var cbErr error
		func() {
			defer func() {
				if r := recover(); r != nil {
					cbErr = fmt.Errorf("callback panicked: %v", r)
				}
			}()
			if cb.Validate != nil {
				if verr := cb.Validate(ev); verr != nil {
					log.Warn("event callback schema mismatch", "channel", channel, "type", ev.Type, "error", verr)
					return
				}
			}
			cbErr = cb.Fn(spanCtx, ev)
		}()
		span.End()
		callbackLatency.WithLabelValues(channel, ev.Type).Observe(time.Since(start).Seconds())
		if cbErr != nil {
			callbackErrors.WithLabelValues(channel, ev.Type).Inc()
			log.Error("event bus callback failed", "channel", channel, "type", ev.Type, "error", cbErr)
		}
	}
}

// Subscribe registers a new EventStream under channel and returns it along
// with a release function implementing scoped acquisition (§4.5.3): on
// release the stream is closed, deregistered, and if no subscriber remains
// for that channel, the broker unsubscribes.
func (b *EventBus) Subscribe(ctx context.Context, channel string, capacity int, validate SchemaValidator) (*EventStream, func(), error) {
	stream := NewEventStream(channel, capacity, validate)
	b.mu.Lock()
	isNewChannel := len(b.streams[channel]) == 0 && channel != WildcardChannel
	b.streams[channel] = append(b.streams[channel], stream)
	b.mu.Unlock()

	if isNewChannel {
		if err := b.broker.Subscribe(ctx, channel); err != nil {
			b.removeStream(channel, stream)
			return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
		}
	}

	release := func() {
		stream.Close()
		remaining := b.removeStream(channel, stream)
		if remaining == 0 && channel != WildcardChannel {
			_ = b.broker.Unsubscribe(context.Background(), channel)
		}
	}
	return stream, release, nil
}

func (b *EventBus) removeStream(channel string, target *EventStream) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.streams[channel]
	out := list[:0]
	for _, s := range list {
		if s != target {
			out = append(out, s)
		}
	}
	b.streams[channel] = out
	return len(out)
}

// Publish forwards ev to the broker, injecting a trace_parent if unset and
// counting the publish for metrics.
func (b *EventBus) Publish(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ev.TraceParent == "" {
		ev.TraceParent = traceParentFromContext(ctx)
	}
	eventsPublished.WithLabelValues(ev.Channel, ev.Type).Inc()
	return b.broker.Publish(ctx, ev)
}

// PublishRequestResponse assigns a correlation_id/reply_channel if unset,
// subscribes to the reply channel, publishes the request, and returns the
// first response event carrying the same correlation_id (§4.5.5, §8).
func (b *EventBus) PublishRequestResponse(ctx context.Context, ev Event, timeout time.Duration) (Event, error) {
	if ev.CorrelationID == "" {
		ev.CorrelationID = uuid.NewString()
	}
	if ev.ReplyChannel == "" {
		ev.ReplyChannel = "reply." + ev.CorrelationID
	}
	stream, release, err := b.Subscribe(ctx, ev.ReplyChannel, 8, nil)
	if err != nil {
		return Event{}, err
	}
	defer release()

	if err := b.Publish(ctx, ev); err != nil {
		return Event{}, err
	}

	waitCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	for {
		reply, err := stream.Recv(waitCtx)
		if err != nil {
			return Event{}, err
		}
		if reply.CorrelationID == ev.CorrelationID {
			return reply, nil
		}
	}
}

// PublishResponse emits a ResponseEvent carrying data on replyChannel,
// tagged with correlationID so the originating PublishRequestResponse call
// can match it.
func (b *EventBus) PublishResponse(ctx context.Context, data map[string]any, replyChannel, correlationID string) error {
	ev := NewEvent(replyChannel, EventTypeResponse, "bus", data)
	ev.CorrelationID = correlationID
	ev.ReplyChannel = replyChannel
	return b.Publish(ctx, ev)
}

// RegisterCallback adds cb to the bus's callback group. Must be called
// before Connect for the callback's channel to be subscribed.
func (b *EventBus) RegisterCallback(cb EventCallback) {
	b.callbacks.Register(cb)
}

func traceParentFromContext(ctx context.Context) string {
	span := trace.SpanContextFromContext(ctx)
	if !span.IsValid() {
		return ""
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.Get("traceparent")
}

func parentFromTraceParent(ctx context.Context, traceParent string) context.Context {
	if traceParent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{"traceparent": traceParent}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
