package trigger

import (
	"context"
	"fmt"
	"sync"

	"github.com/fluxweave/fluxweave/engine/bus"
	"github.com/fluxweave/fluxweave/pkg/logger"
)

// ActionFunc is a named action binding (spec §4.7 "named bindings resolved
// by import path"), replaced here by a static registry per the same
// REDESIGN FLAGS rationale as engine/stage.Registry.
type ActionFunc func(ctx context.Context, params map[string]any) error

// ActionRegistry looks up and invokes actions by name.
type ActionRegistry struct {
	mu      sync.RWMutex
	actions map[string]ActionFunc
}

func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{actions: make(map[string]ActionFunc)}
}

func (r *ActionRegistry) Register(name string, fn ActionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = fn
}

func (r *ActionRegistry) Invoke(ctx context.Context, name string, params map[string]any) error {
	r.mu.RLock()
	fn, ok := r.actions[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown trigger action %q", name)
	}
	return fn(ctx, params)
}

// RegisterDefaultActions binds the two reference actions: "run_workflow"
// publishes a RunWorkflowEvent on the bus for the workflow runtime's own
// callback to pick up (source="trigger", wait=false by construction of that
// callback), and "print_event" is the debugging action that just logs.
func RegisterDefaultActions(reg *ActionRegistry, eb *bus.EventBus) {
	reg.Register("run_workflow", func(ctx context.Context, params map[string]any) error {
		workflowName, _ := params["workflow"].(string)
		input, _ := params["input"].(map[string]any)
		ev := bus.NewEvent(bus.ChannelWorkflows, bus.EventTypeRunWorkflow, "trigger", map[string]any{
			"identifier": workflowName,
			"payload":    input,
		})
		return eb.Publish(ctx, ev)
	})
	reg.Register("print_event", func(ctx context.Context, params map[string]any) error {
		logger.FromContext(ctx).Info("trigger executed", "workflow", params["workflow"], "input", params["input"])
		return nil
	})
}
