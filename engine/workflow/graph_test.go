package workflow_test

import (
	"testing"

	"github.com/fluxweave/fluxweave/engine/core"
	"github.com/fluxweave/fluxweave/engine/stage"
	"github.com/fluxweave/fluxweave/engine/workflow"
	"github.com/stretchr/testify/require"
)

func Test_Graph_LevelsOrdersByDependency(t *testing.T) {
	wf := workflow.NewResource("chain", []stage.Stage{
		{Type: stage.KindSimple, Target: "s1", Name: "s1"},
		{Type: stage.KindParameterized, Target: "s2", Name: "s2", DependsOn: []string{"s1"}},
	})

	g, err := workflow.ToGraph(wf)
	require.NoError(t, err)

	levels, err := g.Levels()
	require.NoError(t, err)
	require.Equal(t, [][]string{{"s1"}, {"s2"}}, levels)
}

func Test_Graph_IndependentStagesShareALevel(t *testing.T) {
	wf := workflow.NewResource("fan-out", []stage.Stage{
		{Type: stage.KindSimple, Target: "a", Name: "a"},
		{Type: stage.KindSimple, Target: "b", Name: "b"},
		{Type: stage.KindSimple, Target: "c", Name: "c", DependsOn: []string{"a", "b"}},
	})

	g, err := workflow.ToGraph(wf)
	require.NoError(t, err)
	levels, err := g.Levels()
	require.NoError(t, err)
	require.Len(t, levels, 2)
	require.ElementsMatch(t, []string{"a", "b"}, levels[0])
	require.Equal(t, []string{"c"}, levels[1])
}

func Test_Graph_CycleIsRejected(t *testing.T) {
	wf := workflow.NewResource("cycle", []stage.Stage{
		{Type: stage.KindSimple, Target: "a", Name: "a", DependsOn: []string{"b"}},
		{Type: stage.KindSimple, Target: "b", Name: "b", DependsOn: []string{"a"}},
	})

	g, err := workflow.ToGraph(wf)
	require.NoError(t, err)

	_, err = g.Levels()
	require.Error(t, err)
	var coreErr *core.Error
	require.ErrorAs(t, err, &coreErr)
	require.Equal(t, core.CodeCyclicDependency, coreErr.Code)
}

func Test_Graph_UnknownDependencyIsRejected(t *testing.T) {
	wf := workflow.NewResource("broken", []stage.Stage{
		{Type: stage.KindSimple, Target: "a", Name: "a", DependsOn: []string{"missing"}},
	})

	_, err := workflow.ToGraph(wf)
	require.Error(t, err)
}

func Test_Graph_DuplicateStageNameIsRejected(t *testing.T) {
	wf := workflow.NewResource("dup", []stage.Stage{
		{Type: stage.KindSimple, Target: "a", Name: "s"},
		{Type: stage.KindSimple, Target: "b", Name: "s"},
	})

	_, err := workflow.ToGraph(wf)
	require.Error(t, err)
}
