package executor

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/fluxweave/fluxweave/engine/core"
	"github.com/shopspring/decimal"
)

// Capacity is the total declared compute a pool's workers offer in
// aggregate (spec §4.4 "sum of available units of any requested resource
// across workers").
type Capacity map[string]float64

// DefaultWorkers mirrors the reference default of cores-1, floored at 1.
func DefaultWorkers() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		return 1
	}
	return n
}

// pool is a bounded goroutine worker pool with decimal resource accounting.
// Submissions are gated in two independent ways: a semaphore bounds the
// number of concurrently-running tasks to the worker count, and a running
// decimal tally of in-flight resource requests is checked against capacity
// before a task is admitted, so GetPartial callers see the exhaustion error
// synchronously rather than discovering it after the task is already queued.
type pool struct {
	capacity Capacity
	sem      chan struct{}

	mu        sync.Mutex
	available map[string]decimal.Decimal
}

func newPool(workers int, capacity Capacity) *pool {
	if workers < 1 {
		workers = DefaultWorkers()
	}
	available := make(map[string]decimal.Decimal, len(capacity))
	for k, v := range capacity {
		available[k] = decimal.NewFromFloat(v)
	}
	return &pool{
		capacity:  capacity,
		sem:       make(chan struct{}, workers),
		available: available,
	}
}

// acquire reserves the declared resources for a stage, returning a release
// func to call once the work completes. Returns a ResourceExhausted
// core.Error before any goroutine is spawned if insufficient units remain.
func (p *pool) acquire(ctx context.Context, required map[string]float64) (func(), error) {
	p.mu.Lock()
	for name, amount := range required {
		need := decimal.NewFromFloat(amount)
		have, tracked := p.available[name]
		if !tracked {
			// Capacity declares nothing for this resource name: treat as
			// unbounded rather than rejecting a stage over an untracked
			// custom extra.
			continue
		}
		if have.LessThan(need) {
			p.mu.Unlock()
			return nil, core.NewError(
				fmt.Errorf("insufficient resources: %q requires %s, %s available", name, need.String(), have.String()),
				core.CodeResourceExhausted,
				map[string]any{"resource": name, "required": amount, "available": have.InexactFloat64()},
			)
		}
	}
	for name, amount := range required {
		if have, tracked := p.available[name]; tracked {
			p.available[name] = have.Sub(decimal.NewFromFloat(amount))
		}
	}
	p.mu.Unlock()

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		p.release(required)
		return nil, core.NewError(ctx.Err(), core.CodeWorkflowExecutionError, map[string]any{"reason": "workflow cancelled"})
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		<-p.sem
		p.release(required)
	}
	return release, nil
}

func (p *pool) release(required map[string]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, amount := range required {
		if have, tracked := p.available[name]; tracked {
			p.available[name] = have.Add(decimal.NewFromFloat(amount))
		}
	}
}
