package executor

import (
	"context"
	"fmt"

	"github.com/fluxweave/fluxweave/engine/core"
	"github.com/fluxweave/fluxweave/engine/stage"
)

// future is a stage.Lazy backed by a goroutine running on the pool; it is
// the Go analogue of the reference's `lazy_func`-wrapped asyncio future.
type future struct {
	done chan struct{}
	val  any
	err  error
}

func newFuture() *future {
	return &future{done: make(chan struct{})}
}

func (f *future) resolve(val any, err error) {
	f.val, f.err = val, err
	close(f.done)
}

func (f *future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, core.NewError(ctx.Err(), core.CodeWorkflowExecutionError, map[string]any{"reason": "workflow cancelled"})
	}
}

// resolveArgs awaits any stage.Lazy found among args before a target runs,
// which is what makes the all-at-once strategy's future-chaining work: a
// not-yet-realized upstream stage can be handed straight to a downstream
// GetPartial call and this is where it actually gets realized.
func resolveArgs(ctx context.Context, args []stage.Value) ([]stage.Value, error) {
	out := make([]stage.Value, len(args))
	for i, a := range args {
		v, err := resolveArg(ctx, a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func resolveArg(ctx context.Context, a stage.Value) (stage.Value, error) {
	lz, ok := a.(stage.Lazy)
	if !ok {
		return a, nil
	}
	v, err := lz.Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("awaiting dependency: %w", err)
	}
	return v, nil
}

func resolveKwargs(ctx context.Context, kwargs map[string]stage.Value) (map[string]stage.Value, error) {
	out := make(map[string]stage.Value, len(kwargs))
	for k, v := range kwargs {
		rv, err := resolveArg(ctx, v)
		if err != nil {
			return nil, err
		}
		out[k] = rv
	}
	return out, nil
}
