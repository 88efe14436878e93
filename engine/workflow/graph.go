package workflow

import (
	"fmt"

	"github.com/fluxweave/fluxweave/engine/core"
	"github.com/fluxweave/fluxweave/engine/stage"
)

// Graph is a compiled WorkflowResource: stages indexed by name plus their
// dependency edges, ready for level-synchronized iteration (spec §4.1).
type Graph struct {
	stages map[string]*stage.Stage
	// order preserves declaration order so level emission is deterministic
	// when several stages become ready simultaneously.
	order []string
	edges map[string][]string
}

// ToGraph materializes a WorkflowResource's stage list into a Graph. It
// does not itself detect cycles — that's deferred to Levels, which is
// called once per run and reports CyclicDependency with full context.
func ToGraph(wf *Resource) (*Graph, error) {
	g := &Graph{
		stages: make(map[string]*stage.Stage, len(wf.Spec.Stages)),
		edges:  make(map[string][]string, len(wf.Spec.Stages)),
	}
	for i := range wf.Spec.Stages {
		s := &wf.Spec.Stages[i]
		if s.Name == "" {
			return nil, core.NewError(
				fmt.Errorf("workflow %q has a stage with no name", wf.Metadata.Name),
				core.CodeValidationError,
				nil,
			)
		}
		if _, dup := g.stages[s.Name]; dup {
			return nil, core.NewError(
				fmt.Errorf("workflow %q declares stage %q more than once", wf.Metadata.Name, s.Name),
				core.CodeValidationError,
				map[string]any{"stage": s.Name},
			)
		}
		g.stages[s.Name] = s
		g.order = append(g.order, s.Name)
		g.edges[s.Name] = dedupeDeps(s.DependsOn, s.Name)
	}
	for name, deps := range g.edges {
		for _, dep := range deps {
			if _, ok := g.stages[dep]; !ok {
				return nil, core.NewError(
					fmt.Errorf("stage %q depends on unknown stage %q", name, dep),
					core.CodeValidationError,
					map[string]any{"stage": name, "depends_on": dep},
				)
			}
		}
	}
	return g, nil
}

func dedupeDeps(deps []string, self string) []string {
	seen := make(map[string]bool, len(deps))
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		if d == self || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// GetStage returns the named stage, or false if it isn't part of the graph.
func (g *Graph) GetStage(name string) (*stage.Stage, bool) {
	s, ok := g.stages[name]
	return s, ok
}

// StageNames returns every stage name in declaration order.
func (g *Graph) StageNames() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Levels computes the level-synchronized topological order (spec §4.1): at
// each step every stage whose dependencies are already satisfied is
// emitted, in declaration order; if stages remain once no more can be
// emitted, the graph has a cycle.
func (g *Graph) Levels() ([][]string, error) {
	remaining := make(map[string][]string, len(g.edges))
	for name, deps := range g.edges {
		remaining[name] = append([]string{}, deps...)
	}

	var levels [][]string
	satisfied := make(map[string]bool, len(g.order))

	for len(remaining) > 0 {
		var level []string
		for _, name := range g.order {
			deps, ok := remaining[name]
			if !ok {
				continue
			}
			if allSatisfied(deps, satisfied) {
				level = append(level, name)
			}
		}
		if len(level) == 0 {
			return nil, core.NewError(
				fmt.Errorf("workflow graph has a cycle among stages %v", remainingNames(remaining)),
				core.CodeCyclicDependency,
				map[string]any{"stages": remainingNames(remaining)},
			)
		}
		for _, name := range level {
			delete(remaining, name)
			satisfied[name] = true
		}
		levels = append(levels, level)
	}
	return levels, nil
}

func allSatisfied(deps []string, satisfied map[string]bool) bool {
	for _, d := range deps {
		if !satisfied[d] {
			return false
		}
	}
	return true
}

func remainingNames(remaining map[string][]string) []string {
	out := make([]string, 0, len(remaining))
	for name := range remaining {
		out = append(out, name)
	}
	return out
}
