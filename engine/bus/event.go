// Package bus implements the event bus (§4.5): typed pub/sub over a
// pluggable Broker, request/response correlation, and per-channel
// subscription streams that drive both internal callbacks and external
// subscribers.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// Event is the bus payload. Typed events (e.g. WorkflowStartedEvent) are
// built by fixing Channel/Type and shaping Data; the wire representation is
// always this flat envelope.
type Event struct {
	ID            string         `json:"id"`
	Time          time.Time      `json:"time"`
	Channel       string         `json:"channel"`
	Type          string         `json:"type"`
	Source        string         `json:"source"`
	Data          map[string]any `json:"data"`
	Headers       map[string]string `json:"headers,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	ReplyChannel  string         `json:"reply_channel,omitempty"`
	TraceParent   string         `json:"trace_parent,omitempty"`
}

// NewEvent builds an Event with a generated ID and the current time.
func NewEvent(channel, eventType, source string, data map[string]any) Event {
	return Event{
		ID:      uuid.NewString(),
		Time:    time.Now(),
		Channel: channel,
		Type:    eventType,
		Source:  source,
		Data:    data,
	}
}

// WildcardChannel matches every channel a CallbackGroup or EventStream
// registers against, used by the trigger engine's condition evaluator
// (§4.7) to observe every event flowing through the bus.
const WildcardChannel = "$ALL"

// WildcardEventType matches every event type within a matched channel.
const WildcardEventType = "$ALL"

// Channel names for the workflow lifecycle events (§6).
const (
	ChannelWorkflows = "workflows"
)

// Event type names carried on ChannelWorkflows.
const (
	EventTypeRunWorkflow       = "RunWorkflowEvent"
	EventTypeWorkflowStarted   = "WorkflowStartedEvent"
	EventTypeWorkflowFinished  = "WorkflowFinishedEvent"
	EventTypeResponse          = "ResponseEvent"
)
