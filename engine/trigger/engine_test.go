package trigger_test

import (
	"context"
	"testing"
	"time"

	"github.com/fluxweave/fluxweave/engine/bus"
	"github.com/fluxweave/fluxweave/engine/trigger"
	"github.com/stretchr/testify/require"
)

func newConditionResource(name string, rule map[string]any) *trigger.Resource {
	return trigger.NewResource(name, trigger.Spec{
		Type:   trigger.TypeCondition,
		Rule:   rule,
		Action: trigger.Action{Target: "print_event", Parameters: map[string]any{"workflow": name}},
	})
}

func Test_ConditionWatcher_FiresActionOnMatchingEvent(t *testing.T) {
	store := &watcherFakeStore{
		conditions: []*trigger.Resource{
			newConditionResource("on-failure", map[string]any{
				"eq": []any{map[string]any{"var": "status"}, "failed"},
			}),
		},
	}

	engine, err := trigger.NewConditionEngine()
	require.NoError(t, err)

	actions := trigger.NewActionRegistry()
	invoked := make(chan map[string]any, 1)
	actions.Register("print_event", func(_ context.Context, params map[string]any) error {
		invoked <- params
		return nil
	})

	watcher := trigger.NewConditionWatcher(engine, store, actions)

	broker := bus.NewMemoryBroker(4)
	eb := bus.NewEventBus(broker, nil)
	watcher.RegisterOn(eb)

	ctx := context.Background()
	require.NoError(t, eb.Connect(ctx))
	defer eb.Disconnect(ctx)

	ev := bus.NewEvent(bus.ChannelWorkflows, "CustomEvent", "test", map[string]any{"status": "failed"})
	require.NoError(t, eb.Publish(ctx, ev))

	select {
	case params := <-invoked:
		require.Equal(t, "on-failure", params["workflow"])
	case <-time.After(2 * time.Second):
		t.Fatal("matching condition did not fire the bound action")
	}
	require.True(t, store.sawLastRun())
}

func Test_ConditionWatcher_SkipsNonMatchingEvent(t *testing.T) {
	store := &watcherFakeStore{
		conditions: []*trigger.Resource{
			newConditionResource("on-failure", map[string]any{
				"eq": []any{map[string]any{"var": "status"}, "failed"},
			}),
		},
	}

	engine, err := trigger.NewConditionEngine()
	require.NoError(t, err)

	actions := trigger.NewActionRegistry()
	invoked := make(chan struct{}, 1)
	actions.Register("print_event", func(_ context.Context, _ map[string]any) error {
		invoked <- struct{}{}
		return nil
	})

	watcher := trigger.NewConditionWatcher(engine, store, actions)

	broker := bus.NewMemoryBroker(4)
	eb := bus.NewEventBus(broker, nil)
	watcher.RegisterOn(eb)

	ctx := context.Background()
	require.NoError(t, eb.Connect(ctx))
	defer eb.Disconnect(ctx)

	ev := bus.NewEvent(bus.ChannelWorkflows, "CustomEvent", "test", map[string]any{"status": "succeeded"})
	require.NoError(t, eb.Publish(ctx, ev))

	select {
	case <-invoked:
		t.Fatal("non-matching condition should not fire the bound action")
	case <-time.After(200 * time.Millisecond):
	}
	require.False(t, store.sawLastRun())
}

type watcherFakeStore struct {
	conditions []*trigger.Resource
	lastRunSet bool
}

func (s *watcherFakeStore) ListConditionTriggers(_ context.Context) ([]*trigger.Resource, error) {
	return s.conditions, nil
}

func (s *watcherFakeStore) ListScheduleTriggers(_ context.Context) ([]*trigger.Resource, error) {
	return nil, nil
}

func (s *watcherFakeStore) SetLastRun(_ context.Context, _ *trigger.Resource, _ time.Time) error {
	s.lastRunSet = true
	return nil
}

func (s *watcherFakeStore) sawLastRun() bool {
	return s.lastRunSet
}
