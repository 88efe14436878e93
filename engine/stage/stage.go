package stage

import (
	"context"
	"fmt"

	"github.com/fluxweave/fluxweave/engine/core"
)

// Kind distinguishes the two stage variants (spec §3 WorkflowStage.type).
type Kind string

const (
	KindSimple        Kind = "simple"
	KindParameterized Kind = "parameterized"
)

// Lazy is the opaque future an Executor hands back from Lazy/MappedLazy;
// the workflow runtime awaits it once its level is submitted.
type Lazy interface {
	Await(ctx context.Context) (any, error)
}

// Executor is the slice of the executor contract (§4.4) a stage needs to
// create its lazy value. Defined here, at point of use, so engine/stage
// has no import-time dependency on engine/executor.
type Executor interface {
	Lazy(s *Stage) func(ctx context.Context, args []Value, kwargs map[string]Value) (Lazy, error)
	MappedLazy(s *Stage) func(ctx context.Context, iterable []Value, args []Value, kwargs map[string]Value) (Lazy, error)
}

// Stage is a polymorphic wrapper around a registered Target (spec §4.2).
type Stage struct {
	Type        Kind
	Target      string
	Name        string
	Description string
	Version     string
	DependsOn   []string
	Options     map[string]any
	Resources   Resources
	Priority    int
	// MapOn names the input field a first-position ParameterizedStage maps
	// over; only meaningful when Type == KindParameterized and DependsOn is
	// empty.
	MapOn string
}

// IsAsync reports whether the stage's resolved target manages its own
// concurrency (spec §4.2 `is_async`).
func (s *Stage) IsAsync(reg *Registry) bool {
	t, err := reg.Lookup(s.Target)
	if err != nil {
		return false
	}
	return t.Async
}

// GetRequiredResources returns the stage's declared resource shape
// (cpus/gpus/memory/extras), omitting unset fields.
func (s *Stage) GetRequiredResources() map[string]float64 {
	return s.Resources.AsMap()
}

// GetPartial binds the stage's inputs and dispatches to the executor,
// implementing the contract in spec §4.2:
//   - a stage with no dependencies receives the run's input mapping as
//     kwargs;
//   - a stage with dependencies receives their outputs as positional args,
//     in depends_on order; supplying both is an error;
//   - kwargs are filtered to the target's declared parameters unless the
//     target accepts arbitrary kwargs.
func (s *Stage) GetPartial(
	ctx context.Context,
	reg *Registry,
	executor Executor,
	rc *RunContext,
	upstream map[string]any,
) (Lazy, error) {
	target, err := reg.Lookup(s.Target)
	if err != nil {
		return nil, err
	}

	var args []Value
	kwargs := make(map[string]Value)

	if len(s.DependsOn) > 0 {
		for _, dep := range s.DependsOn {
			out, ok := upstream[dep]
			if !ok {
				return nil, core.NewError(
					fmt.Errorf("stage %q depends on %q, which has not produced output yet", s.Name, dep),
					core.CodeValidationError,
					map[string]any{"stage": s.Name, "depends_on": dep},
				)
			}
			args = append(args, out)
		}
	} else {
		for k, v := range rc.Input {
			kwargs[k] = v
		}
	}

	filteredKwargs := filterKwargs(kwargs, target)

	if len(s.DependsOn) > 0 && len(args) == 0 && len(filteredKwargs) == 0 {
		return nil, core.NewError(
			fmt.Errorf("stage %q takes no arguments but depends on previous stage", s.Name),
			core.CodeValidationError,
			map[string]any{"stage": s.Name},
		)
	}

	return s.createLazy(ContextWithRunContext(ctx, rc), executor, rc, args, filteredKwargs)
}

func filterKwargs(kwargs map[string]Value, target Target) map[string]Value {
	if target.HasVarKeyword {
		return kwargs
	}
	allowed := make(map[string]bool, len(target.ParamNames))
	for _, p := range target.ParamNames {
		allowed[p] = true
	}
	out := make(map[string]Value, len(kwargs))
	for k, v := range kwargs {
		if allowed[k] {
			out[k] = v
		}
	}
	return out
}

// createLazy dispatches to the executor per the stage's kind (§4.2
// `create_lazy`). For a parameterized stage the iterable is either the
// first dependency's output or, for a first stage, input[map_on].
func (s *Stage) createLazy(ctx context.Context, executor Executor, rc *RunContext, args []Value, kwargs map[string]Value) (Lazy, error) {
	switch s.Type {
	case KindSimple:
		fn := executor.Lazy(s)
		return fn(ctx, args, kwargs)
	case KindParameterized:
		var raw any
		switch {
		case s.MapOn != "" && len(args) == 0:
			v, ok := rc.Input[s.MapOn]
			if !ok {
				return nil, core.NewError(
					fmt.Errorf("parameterized stage %q maps on input field %q, which is missing", s.Name, s.MapOn),
					core.CodeValidationError,
					map[string]any{"stage": s.Name, "map_on": s.MapOn},
				)
			}
			raw = v
			delete(kwargs, s.MapOn)
		case len(args) > 0:
			raw = args[0]
			args = args[1:]
		default:
			return nil, core.NewError(
				fmt.Errorf("parameterized stage %q has no iterable to map over", s.Name),
				core.CodeValidationError,
				map[string]any{"stage": s.Name},
			)
		}
		iterable, err := asIterable(raw)
		if err != nil {
			return nil, core.NewError(err, core.CodeValidationError, map[string]any{"stage": s.Name})
		}
		fn := executor.MappedLazy(s)
		return fn(ctx, iterable, args, kwargs)
	default:
		return nil, core.NewError(
			fmt.Errorf("unknown stage type %q for stage %q", s.Type, s.Name),
			core.CodeValidationError,
			map[string]any{"stage": s.Name},
		)
	}
}

func asIterable(v any) ([]Value, error) {
	vv, ok := v.([]Value)
	if !ok {
		return nil, fmt.Errorf("expected an iterable value to map over, got %T", v)
	}
	return vv, nil
}
