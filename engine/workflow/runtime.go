package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fluxweave/fluxweave/engine/bus"
	"github.com/fluxweave/fluxweave/engine/core"
	"github.com/fluxweave/fluxweave/engine/infra/monitoring/metrics"
	"github.com/fluxweave/fluxweave/engine/stage"
	"github.com/fluxweave/fluxweave/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

// Strategy selects how a run walks the compiled graph's levels (spec §4.3).
type Strategy string

const (
	// StrategyGroupByGroup awaits every lazy value in a level before
	// submitting the next; errors short-circuit before downstream
	// submission. This is the default: strictly more robust than
	// all-at-once at the cost of some parallelism (§9 open question).
	StrategyGroupByGroup Strategy = "group_by_group"
	// StrategyAllAtOnce binds the entire DAG up front (later levels
	// receive earlier levels' not-yet-realized Lazy values as their
	// "upstream output") and only awaits the final level.
	StrategyAllAtOnce Strategy = "all_at_once"
)

// Loader resolves a WorkflowResource by name or uid.
type Loader interface {
	GetWorkflow(ctx context.Context, identifier string) (*Resource, error)
}

// ConfigMerger implements the config selector join (spec §4.6): given the
// workflow being run, return the merged config_data passed into the run
// context.
type ConfigMerger interface {
	MergedConfigData(ctx context.Context, wf *Resource) (map[string]any, error)
}

// RunStore persists WorkflowRun records when retention is enabled.
type RunStore interface {
	SaveRun(ctx context.Context, run *Run) error
}

var (
	workflowsExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.MetricNameWithSubsystem("workflow", "executed_total"),
			Help: "Total workflow runs executed, by workflow and executor.",
		},
		[]string{"workflow", "namespace", "executor", "source"},
	)
	workflowExecutionSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metrics.MetricNameWithSubsystem("workflow", "execution_seconds"),
			Help:    "Workflow run duration in seconds.",
			Buckets: metrics.WorkflowDurationBuckets,
		},
		[]string{"workflow", "namespace", "executor", "source"},
	)
	workflowsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.MetricNameWithSubsystem("workflow", "failed_total"),
			Help: "Total workflow runs that ended in the failed state.",
		},
		[]string{"workflow", "namespace", "executor", "source"},
	)
)

// RegisterMetrics registers this package's collectors against reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{workflowsExecuted, workflowExecutionSeconds, workflowsFailed} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !prometheusAlreadyRegistered(err, &already) {
				return err
			}
		}
	}
	return nil
}

func prometheusAlreadyRegistered(err error, target *prometheus.AlreadyRegisteredError) bool {
	are, ok := err.(prometheus.AlreadyRegisteredError)
	if ok {
		*target = are
	}
	return ok
}

// Runtime is the top-level orchestrator for a single run (spec §4.3
// `run_workflow`).
type Runtime struct {
	Loader       Loader
	ConfigMerger ConfigMerger
	RunStore     RunStore
	Bus          *bus.EventBus
	Registry     *stage.Registry
	Executor     stage.Executor
	ExecutorName string
	RunRetention time.Duration
	Strategy     Strategy
	DefaultNamespace string
}

// RunOptions parameterizes a single RunWorkflow call.
type RunOptions struct {
	Input     map[string]any
	Namespace string
	Source    core.SourceType
	// Wait mirrors the Python reference's `wait` parameter: true blocks
	// until the run completes; false starts it in the background and
	// returns the pending Run immediately.
	Wait bool
}

// retained reports whether runs are persisted (spec §4.3: "If retention is
// enabled (run_retention_duration != disabled)...").
func (rt *Runtime) retained() bool {
	return rt.RunRetention != 0
}

// RegisterBusCallback binds this Runtime's RunWorkflowEvent handler into
// the event bus's callback group (spec §4.7: "the workflow runtime's
// RunWorkflowEvent callback picks it up and invokes run_workflow(...,
// wait=false)"). Must be called before Bus.Connect.
func (rt *Runtime) RegisterBusCallback() {
	rt.Bus.RegisterCallback(bus.EventCallback{
		Channel:   bus.ChannelWorkflows,
		EventType: bus.EventTypeRunWorkflow,
		Fn: func(ctx context.Context, ev bus.Event) error {
			identifier, _ := ev.Data["identifier"].(string)
			if identifier == "" {
				return fmt.Errorf("RunWorkflowEvent missing identifier")
			}
			payload, _ := ev.Data["payload"].(map[string]any)
			_, err := rt.RunWorkflow(ctx, identifier, RunOptions{
				Input:  payload,
				Source: core.SourceTrigger,
				Wait:   false,
			})
			return err
		},
	})
}

// RunWorkflow loads the named workflow, builds a Run, and executes it,
// implementing spec §4.3 end to end.
func (rt *Runtime) RunWorkflow(ctx context.Context, identifier string, opts RunOptions) (*Run, error) {
	definition, err := rt.Loader.GetWorkflow(ctx, identifier)
	if err != nil {
		return nil, err
	}

	namespace := opts.Namespace
	if namespace == "" {
		namespace = rt.DefaultNamespace
	}
	if namespace == "" {
		namespace = "default"
	}
	source := opts.Source
	if source == "" {
		source = core.SourceManual
	}

	run := NewRun(definition.Metadata.Name, namespace, source)
	if rt.retained() {
		if err := rt.RunStore.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to persist workflow run: %w", err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		rt.execute(ctx, definition, run, opts.Input, namespace)
	}()

	if opts.Wait {
		<-done
	}
	return run, nil
}

func (rt *Runtime) execute(ctx context.Context, definition *Resource, run *Run, input map[string]any, namespace string) {
	log := logger.FromContext(ctx)
	labels := prometheus.Labels{
		"workflow":  definition.Metadata.Name,
		"namespace": namespace,
		"executor":  rt.ExecutorName,
		"source":    string(run.Source),
	}
	start := time.Now()

	configData, err := rt.ConfigMerger.MergedConfigData(ctx, definition)
	if err != nil {
		rt.finish(ctx, run, core.StatusFailed, map[string]any{"error_kind": core.CodeValidationError, "message": err.Error()}, labels, start, log)
		return
	}

	workflowsExecuted.With(labels).Inc()

	run.SetRunning()
	if rt.retained() {
		if err := rt.RunStore.SaveRun(ctx, run); err != nil {
			log.Warn("failed to persist running workflow run", "error", err)
		}
	}
	rt.publish(ctx, bus.EventTypeWorkflowStarted, run, log)
	log.Info("workflow run started", "workflow", definition.Metadata.Name, "run_uid", run.UID)

	result, execErr := rt.runGraph(ctx, definition, run, input, namespace, configData)
	if execErr != nil {
		log.Error("workflow run failed", "workflow", definition.Metadata.Name, "run_uid", run.UID, "error", execErr)
		rt.finish(ctx, run, core.StatusFailed, map[string]any{"error_kind": core.CodeWorkflowExecutionError, "message": execErr.Error()}, labels, start, log)
		return
	}

	rt.finish(ctx, run, core.StatusFinished, result, labels, start, log)
}

func (rt *Runtime) finish(
	ctx context.Context,
	run *Run,
	state core.StatusType,
	result any,
	labels prometheus.Labels,
	start time.Time,
	log logger.Logger,
) {
	run.SetFinished(result, state)
	workflowExecutionSeconds.With(labels).Observe(time.Since(start).Seconds())
	if state == core.StatusFailed {
		workflowsFailed.With(labels).Inc()
	}
	if rt.retained() {
		if err := rt.RunStore.SaveRun(ctx, run); err != nil {
			log.Warn("failed to persist finished workflow run", "error", err)
		}
	}
	rt.publish(ctx, bus.EventTypeWorkflowFinished, run, log)
	log.Info("workflow run finished", "run_uid", run.UID, "state", string(state))
}

func (rt *Runtime) publish(ctx context.Context, eventType string, run *Run, log logger.Logger) {
	data, err := core.AsMapDefault(run)
	if err != nil {
		log.Warn("failed to encode workflow run event payload", "error", err)
		data = map[string]any{"uid": run.UID, "name": run.Name, "state": string(run.State)}
	}
	ev := bus.NewEvent(bus.ChannelWorkflows, eventType, "workflow", data)
	if err := rt.Bus.Publish(ctx, ev); err != nil {
		log.Warn("failed to publish workflow run event", "event_type", eventType, "error", err)
	}
}

// runGraph compiles the workflow and walks its levels per the configured
// Strategy, returning the last level's output per spec §4.1 ("single stage
// -> scalar, multiple -> list keyed by level order").
func (rt *Runtime) runGraph(
	ctx context.Context,
	definition *Resource,
	run *Run,
	input map[string]any,
	namespace string,
	configData map[string]any,
) (any, error) {
	graph, err := ToGraph(definition)
	if err != nil {
		return nil, err
	}
	levels, err := graph.Levels()
	if err != nil {
		return nil, err
	}

	rc := stage.NewRunContext(run.UID, run.Name, definition.Metadata.Name, namespace, rt.ExecutorName, input, configData)

	switch rt.Strategy {
	case StrategyAllAtOnce:
		return rt.runAllAtOnce(ctx, graph, levels, rc)
	default:
		return rt.runGroupByGroup(ctx, graph, levels, rc)
	}
}

func (rt *Runtime) runGroupByGroup(ctx context.Context, graph *Graph, levels [][]string, rc *stage.RunContext) (any, error) {
	outputs := make(map[string]any)
	var lastLevel []string
	for _, level := range levels {
		lastLevel = level
		lazies := make(map[string]stage.Lazy, len(level))
		for _, name := range level {
			s, _ := graph.GetStage(name)
			lazy, err := s.GetPartial(ctx, rt.Registry, rt.Executor, rc, outputs)
			if err != nil {
				return nil, fmt.Errorf("stage %q: %w", name, err)
			}
			lazies[name] = lazy
		}
		results, err := awaitAll(ctx, lazies)
		if err != nil {
			return nil, err
		}
		for name, out := range results {
			outputs[name] = out
		}
	}
	return levelResult(lastLevel, outputs), nil
}

// runAllAtOnce binds every level using the prior level's Lazy values
// directly as "upstream output" rather than waiting for them to resolve; an
// Executor implementation is expected to resolve any stage.Lazy it
// receives as an argument before invoking the underlying target (see
// engine/executor's local worker), which reproduces the Dask/Ray-style
// future-chaining the original system relies on.
func (rt *Runtime) runAllAtOnce(ctx context.Context, graph *Graph, levels [][]string, rc *stage.RunContext) (any, error) {
	bound := make(map[string]any)
	var lastLevel []string
	var lastLazies map[string]stage.Lazy
	for _, level := range levels {
		lastLevel = level
		lastLazies = make(map[string]stage.Lazy, len(level))
		for _, name := range level {
			s, _ := graph.GetStage(name)
			lazy, err := s.GetPartial(ctx, rt.Registry, rt.Executor, rc, bound)
			if err != nil {
				return nil, fmt.Errorf("stage %q: %w", name, err)
			}
			bound[name] = lazy
			lastLazies[name] = lazy
		}
	}
	results, err := awaitAll(ctx, lastLazies)
	if err != nil {
		return nil, err
	}
	return levelResult(lastLevel, results), nil
}

func awaitAll(ctx context.Context, lazies map[string]stage.Lazy) (map[string]any, error) {
	type outcome struct {
		name string
		val  any
		err  error
	}
	resultsCh := make(chan outcome, len(lazies))
	var wg sync.WaitGroup
	for name, lazy := range lazies {
		wg.Add(1)
		go func(name string, lazy stage.Lazy) {
			defer wg.Done()
			val, err := lazy.Await(ctx)
			resultsCh <- outcome{name: name, val: val, err: err}
		}(name, lazy)
	}
	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	out := make(map[string]any, len(lazies))
	var firstErr error
	for o := range resultsCh {
		if o.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("stage %q: %w", o.name, o.err)
			}
			continue
		}
		out[o.name] = o.val
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func levelResult(level []string, outputs map[string]any) any {
	if len(level) == 1 {
		return outputs[level[0]]
	}
	list := make([]any, len(level))
	for i, name := range level {
		list[i] = outputs[name]
	}
	return list
}
