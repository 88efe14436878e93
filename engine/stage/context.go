package stage

import "context"

// RunContext is the per-run envelope threaded through every stage
// invocation (spec §4.2, §9 "context propagation across worker
// boundaries"): it is serialized/reconstructed at worker entry rather than
// relying on any ambient goroutine-local state.
type RunContext struct {
	RunUID      string
	RunName     string
	Workflow    string
	Namespace   string
	Executor    string
	Input       map[string]any
	ConfigData  map[string]any
}

// NewRunContext builds a RunContext for a single workflow run.
func NewRunContext(runUID, runName, workflow, namespace, executor string, input, configData map[string]any) *RunContext {
	return &RunContext{
		RunUID:     runUID,
		RunName:    runName,
		Workflow:   workflow,
		Namespace:  namespace,
		Executor:   executor,
		Input:      input,
		ConfigData: configData,
	}
}

type runContextKey struct{}

// ContextWithRunContext binds rc onto ctx; the stage execution wrapper
// calls this before invoking the target and relies on ctx cancellation
// alone to unwind it (spec §4.2 "always resets the run context on exit" —
// in Go this falls out of ctx's own scoping, nothing to reset explicitly).
func ContextWithRunContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

// RunContextFromContext retrieves the RunContext bound by GetPartial, or
// nil if none is present (e.g. a target invoked outside a run, such as a
// unit test that doesn't need it).
func RunContextFromContext(ctx context.Context) *RunContext {
	rc, _ := ctx.Value(runContextKey{}).(*RunContext)
	return rc
}
