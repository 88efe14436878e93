package bus_test

import (
	"context"
	"testing"

	"github.com/fluxweave/fluxweave/engine/bus"
	"github.com/stretchr/testify/require"
)

func Test_CallbackGroup_MatchingExact(t *testing.T) {
	g := bus.NewCallbackGroup()
	g.Register(bus.EventCallback{
		Fn:        func(context.Context, bus.Event) error { return nil },
		Channel:   "workflows",
		EventType: bus.EventTypeWorkflowStarted,
	})

	matches := g.Matching("workflows", bus.EventTypeWorkflowStarted)
	require.Len(t, matches, 1)

	require.Empty(t, g.Matching("workflows", bus.EventTypeWorkflowFinished))
}

func Test_CallbackGroup_MatchingWildcardEventType(t *testing.T) {
	g := bus.NewCallbackGroup()
	g.Register(bus.EventCallback{
		Fn:        func(context.Context, bus.Event) error { return nil },
		Channel:   "workflows",
		EventType: bus.WildcardEventType,
	})

	require.Len(t, g.Matching("workflows", bus.EventTypeWorkflowStarted), 1)
	require.Len(t, g.Matching("workflows", bus.EventTypeWorkflowFinished), 1)
}

func Test_CallbackGroup_MatchingWildcardChannel(t *testing.T) {
	g := bus.NewCallbackGroup()
	g.Register(bus.EventCallback{
		Fn:        func(context.Context, bus.Event) error { return nil },
		Channel:   bus.WildcardChannel,
		EventType: bus.WildcardEventType,
	})

	require.Len(t, g.Matching("workflows", bus.EventTypeWorkflowStarted), 1)
	require.Len(t, g.Matching("anything", "SomeOtherEvent"), 1)
}

func Test_CallbackGroup_Channels(t *testing.T) {
	g := bus.NewCallbackGroup()
	g.Register(bus.EventCallback{Channel: "workflows", EventType: bus.WildcardEventType})
	g.Register(bus.EventCallback{Channel: "stages", EventType: bus.WildcardEventType})
	require.ElementsMatch(t, []string{"workflows", "stages"}, g.Channels())
}
