package trigger

import (
	"context"
	"time"

	"github.com/fluxweave/fluxweave/engine/bus"
	"github.com/fluxweave/fluxweave/pkg/logger"
)

// ConditionWatcher evaluates condition triggers against every event on the
// bus (spec §4.7 "Condition triggers"): a `$ALL/$ALL` wildcard callback
// loads all condition triggers, evaluates each rule against the event's
// Data, and on match sets last_run and invokes the bound action.
type ConditionWatcher struct {
	engine  *ConditionEngine
	store   RuleStore
	actions *ActionRegistry
}

func NewConditionWatcher(engine *ConditionEngine, store RuleStore, actions *ActionRegistry) *ConditionWatcher {
	return &ConditionWatcher{engine: engine, store: store, actions: actions}
}

// RegisterOn binds the watcher's wildcard callback into eb's callback
// group. Must be called before eb.Connect.
func (w *ConditionWatcher) RegisterOn(eb *bus.EventBus) {
	eb.RegisterCallback(bus.EventCallback{
		Channel:   bus.WildcardChannel,
		EventType: bus.WildcardEventType,
		Fn:        w.handle,
	})
}

func (w *ConditionWatcher) handle(ctx context.Context, ev bus.Event) error {
	log := logger.FromContext(ctx)
	triggers, err := w.store.ListConditionTriggers(ctx)
	if err != nil {
		return err
	}
	for _, trig := range triggers {
		rule, ok := trig.Spec.ConditionRule()
		if !ok {
			continue
		}
		matched, err := w.engine.Evaluate(rule, NewMapResolver(ev.Data))
		if err != nil {
			log.Warn("condition trigger evaluation failed", "trigger", trig.Metadata.Name, "error", err)
			continue
		}
		if !truthy(matched) {
			continue
		}
		if err := w.store.SetLastRun(ctx, trig, time.Now()); err != nil {
			log.Error("failed to persist trigger last_run", "trigger", trig.Metadata.Name, "error", err)
			continue
		}
		if err := w.actions.Invoke(ctx, trig.Spec.Action.Target, trig.Spec.Action.Parameters); err != nil {
			log.Error("trigger action failed", "trigger", trig.Metadata.Name, "action", trig.Spec.Action.Target, "error", err)
		}
	}
	return nil
}
