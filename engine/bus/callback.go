package bus

import "context"

// EventCallback binds a handler function to a channel and event type; Match
// treats "$ALL" on either side as a wildcard (§4.5).
type EventCallback struct {
	Fn        func(ctx context.Context, ev Event) error
	Channel   string
	EventType string
	// Validate re-checks the payload against the callback's own expected
	// event model before dispatch; a mismatch is logged and the callback is
	// skipped (§7 SchemaMismatch), never propagated.
	Validate SchemaValidator
}

// Match reports whether this callback should run for the given event type.
func (c EventCallback) Match(eventType string) bool {
	return c.EventType == eventType || c.EventType == WildcardEventType || eventType == WildcardEventType
}

// CallbackGroup indexes callbacks by the channel they were registered
// against.
type CallbackGroup struct {
	byChannel map[string][]EventCallback
}

// NewCallbackGroup constructs an empty CallbackGroup.
func NewCallbackGroup() *CallbackGroup {
	return &CallbackGroup{byChannel: make(map[string][]EventCallback)}
}

// Register adds cb under cb.Channel.
func (g *CallbackGroup) Register(cb EventCallback) {
	g.byChannel[cb.Channel] = append(g.byChannel[cb.Channel], cb)
}

// Channels returns every distinct channel with at least one registered
// callback, used by EventBus.Connect to know what to subscribe to.
func (g *CallbackGroup) Channels() []string {
	out := make([]string, 0, len(g.byChannel))
	for ch := range g.byChannel {
		out = append(out, ch)
	}
	return out
}

// Matching returns every callback registered under channel (or the
// wildcard channel) whose EventType matches eventType.
func (g *CallbackGroup) Matching(channel, eventType string) []EventCallback {
	var out []EventCallback
	for _, cb := range g.byChannel[channel] {
		if cb.Match(eventType) {
			out = append(out, cb)
		}
	}
	if channel != WildcardChannel {
		for _, cb := range g.byChannel[WildcardChannel] {
			if cb.Match(eventType) {
				out = append(out, cb)
			}
		}
	}
	return out
}
