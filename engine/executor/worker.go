package executor

import (
	"context"

	"github.com/fluxweave/fluxweave/engine/stage"
)

// workerCore implements stage.Executor over a bounded pool; Local and
// Distributed embed it and differ only in which ClusterMemory they expose
// (spec §4.4: "the backend decides its own sharing").
type workerCore struct {
	pool     *pool
	registry *stage.Registry
}

func newWorkerCore(workers int, capacity Capacity, registry *stage.Registry) *workerCore {
	return &workerCore{pool: newPool(workers, capacity), registry: registry}
}

func (w *workerCore) Lazy(s *stage.Stage) func(context.Context, []stage.Value, map[string]stage.Value) (stage.Lazy, error) {
	return func(ctx context.Context, args []stage.Value, kwargs map[string]stage.Value) (stage.Lazy, error) {
		target, err := w.registry.Lookup(s.Target)
		if err != nil {
			return nil, err
		}
		release, err := w.pool.acquire(ctx, s.GetRequiredResources())
		if err != nil {
			return nil, err
		}

		f := newFuture()
		go func() {
			defer release()
			resolvedArgs, err := resolveArgs(ctx, args)
			if err != nil {
				f.resolve(nil, err)
				return
			}
			resolvedKwargs, err := resolveKwargs(ctx, kwargs)
			if err != nil {
				f.resolve(nil, err)
				return
			}
			val, err := target.Fn(ctx, resolvedArgs, resolvedKwargs)
			f.resolve(val, err)
		}()
		return f, nil
	}
}

func (w *workerCore) MappedLazy(s *stage.Stage) func(context.Context, []stage.Value, []stage.Value, map[string]stage.Value) (stage.Lazy, error) {
	return func(ctx context.Context, iterable []stage.Value, args []stage.Value, kwargs map[string]stage.Value) (stage.Lazy, error) {
		target, err := w.registry.Lookup(s.Target)
		if err != nil {
			return nil, err
		}

		f := newFuture()
		go func() {
			resolvedIterable, err := resolveArgs(ctx, iterable)
			if err != nil {
				f.resolve(nil, err)
				return
			}
			resolvedArgs, err := resolveArgs(ctx, args)
			if err != nil {
				f.resolve(nil, err)
				return
			}
			resolvedKwargs, err := resolveKwargs(ctx, kwargs)
			if err != nil {
				f.resolve(nil, err)
				return
			}

			out := make([]any, len(resolvedIterable))
			type elemResult struct {
				idx int
				val any
				err error
			}
			resultsCh := make(chan elemResult, len(resolvedIterable))
			for i, elem := range resolvedIterable {
				release, err := w.pool.acquire(ctx, s.GetRequiredResources())
				if err != nil {
					f.resolve(nil, err)
					return
				}
				go func(i int, elem stage.Value) {
					defer release()
					callArgs := append([]stage.Value{elem}, resolvedArgs...)
					v, err := target.Fn(ctx, callArgs, resolvedKwargs)
					resultsCh <- elemResult{idx: i, val: v, err: err}
				}(i, elem)
			}
			var firstErr error
			for range resolvedIterable {
				r := <-resultsCh
				if r.err != nil && firstErr == nil {
					firstErr = r.err
					continue
				}
				out[r.idx] = r.val
			}
			if firstErr != nil {
				f.resolve(nil, firstErr)
				return
			}
			f.resolve(out, nil)
		}()
		return f, nil
	}
}
