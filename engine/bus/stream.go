package bus

import (
	"context"
	"errors"
	"sync"
)

// ErrEndOfStream is the sentinel returned by EventStream.Recv once the
// stream has been closed, replacing exception-as-control-flow (§9) with an
// explicit result value.
var ErrEndOfStream = errors.New("end of stream")

// SchemaValidator validates an Event against the schema registered for its
// Type, or a default schema when none is registered (§4.5 EventStream).
type SchemaValidator func(ev Event) error

// EventStream is a bounded queue of events terminated by ErrEndOfStream;
// the EventBus multicasts into every stream registered under a channel (or
// the wildcard channel).
type EventStream struct {
	channel   string
	queue     chan Event
	validate  SchemaValidator
	closeOnce sync.Once
	closed    chan struct{}
}

// NewEventStream constructs a stream with the given bounded capacity
// (0 defaults to a generously sized buffer — true unbounded queues aren't
// representable as Go channels, so backpressure still applies eventually,
// consistent with §5's "slow subscribers slow the bus").
func NewEventStream(channel string, capacity int, validate SchemaValidator) *EventStream {
	if capacity <= 0 {
		capacity = 256
	}
	return &EventStream{
		channel:  channel,
		queue:    make(chan Event, capacity),
		validate: validate,
		closed:   make(chan struct{}),
	}
}

// Channel returns the channel this stream is registered under.
func (s *EventStream) Channel() string { return s.channel }

// Send enqueues ev, validating it first if a validator is registered.
// Blocks (applying backpressure to the caller, typically the bus's
// consumer task) if the stream's queue is full.
func (s *EventStream) Send(ctx context.Context, ev Event) error {
	if s.validate != nil {
		if err := s.validate(ev); err != nil {
			return err
		}
	}
	select {
	case s.queue <- ev:
		return nil
	case <-s.closed:
		return ErrEndOfStream
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv blocks until the next event, ErrEndOfStream, or ctx cancellation.
func (s *EventStream) Recv(ctx context.Context) (Event, error) {
	select {
	case ev, ok := <-s.queue:
		if !ok {
			return Event{}, ErrEndOfStream
		}
		return ev, nil
	case <-s.closed:
		// Drain any already-queued events before reporting end of stream.
		select {
		case ev, ok := <-s.queue:
			if ok {
				return ev, nil
			}
		default:
		}
		return Event{}, ErrEndOfStream
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Close posts the EndOfStream sentinel; safe to call more than once.
func (s *EventStream) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}
