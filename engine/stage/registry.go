package stage

import (
	"context"
	"fmt"
	"sync"

	"github.com/fluxweave/fluxweave/engine/core"
)

// TargetFunc is a registered stage body. args/kwargs have already been
// filtered to the target's declared parameters by GetPartial. The active
// RunContext is available via RunContextFromContext(ctx) — the Go analogue
// of the spec's internal "context" keyword argument (§4.2), threaded
// through ctx rather than the kwargs map since the Executor contract only
// forwards ctx/args/kwargs.
type TargetFunc func(ctx context.Context, args []Value, kwargs map[string]Value) (any, error)

// Value is an opaque stage argument; executors pass these through without
// interpreting them, so a plain `any` is used rather than a typed union.
type Value = any

// Target is a statically registered stage body (REDESIGN FLAGS §9:
// "import_from_string" is replaced with a registry built at process
// startup rather than reflective dynamic import).
type Target struct {
	// Name is the canonical registry key; workflow stages reference it by
	// this name.
	Name string
	// Fn is invoked with the filtered args/kwargs.
	Fn TargetFunc
	// ParamNames lists the target's declared keyword parameters. Kwargs not
	// in this list are dropped unless HasVarKeyword is set.
	ParamNames []string
	// HasVarKeyword marks a target that accepts arbitrary extra kwargs
	// (the Go analogue of **kwargs), bypassing ParamNames filtering.
	HasVarKeyword bool
	// HasVarPositional marks a target that accepts any number of
	// positional args beyond ParamNames.
	HasVarPositional bool
	// Async marks a target whose Fn itself manages concurrent work
	// internally; it has no effect on dispatch in Go (everything already
	// runs on a goroutine) but is preserved for parity with spec's
	// `is_async` introspection and surfaced via Stage.IsAsync.
	Async bool
	// Description documents the target for discovery/diagnostics.
	Description string
}

// Registry maps target names to their Target definition. It is built once
// at process startup and is safe for concurrent reads thereafter.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]Target
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{targets: make(map[string]Target)}
}

// Register adds t to the registry, keyed by t.Name. Re-registering the
// same name overwrites the previous definition; callers that want to
// detect accidental shadowing should check Lookup first.
func (r *Registry) Register(t Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[t.Name] = t
}

// Lookup resolves name to its Target, or returns a ValidationError
// (§9 REDESIGN FLAGS: compiling a workflow whose stage names an
// unregistered target fails at submission).
func (r *Registry) Lookup(name string) (Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[name]
	if !ok {
		return Target{}, core.NewError(
			fmt.Errorf("unregistered stage target %q", name),
			core.CodeValidationError,
			map[string]any{"target": name},
		)
	}
	return t, nil
}

// Names returns every registered target name, primarily for diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.targets))
	for name := range r.targets {
		out = append(out, name)
	}
	return out
}
