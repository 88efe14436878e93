package trigger_test

import (
	"testing"

	"github.com/fluxweave/fluxweave/engine/trigger"
	"github.com/stretchr/testify/require"
)

func mustEngine(t *testing.T) *trigger.ConditionEngine {
	t.Helper()
	e, err := trigger.NewConditionEngine()
	require.NoError(t, err)
	return e
}

func Test_Condition_VarResolvesDottedPath(t *testing.T) {
	e := mustEngine(t)
	rule := map[string]any{"eq": []any{map[string]any{"var": "t.v"}, float64(5)}}
	data := map[string]any{"t": map[string]any{"v": float64(5)}}

	result, err := e.Evaluate(rule, trigger.NewMapResolver(data))
	require.NoError(t, err)
	require.Equal(t, true, result)
}

func Test_Condition_VarMissingPathResolvesNull(t *testing.T) {
	e := mustEngine(t)
	rule := map[string]any{"var": "missing.path"}
	result, err := e.Evaluate(rule, trigger.NewMapResolver(map[string]any{}))
	require.NoError(t, err)
	require.Nil(t, result)
}

func Test_Condition_AndRequiresAllTrue(t *testing.T) {
	e := mustEngine(t)
	rule := map[string]any{"and": []any{true, true, false}}
	result, err := e.Evaluate(rule, trigger.NewMapResolver(nil))
	require.NoError(t, err)
	require.Equal(t, false, result)
}

func Test_Condition_AndOfEmptyListIsTrue(t *testing.T) {
	e := mustEngine(t)
	rule := map[string]any{"and": []any{}}
	result, err := e.Evaluate(rule, trigger.NewMapResolver(nil))
	require.NoError(t, err)
	require.Equal(t, true, result)
}

func Test_Condition_OrIsTrueLogicalOr(t *testing.T) {
	e := mustEngine(t)
	rule := map[string]any{"or": []any{false, false, true}}
	result, err := e.Evaluate(rule, trigger.NewMapResolver(nil))
	require.NoError(t, err)
	require.Equal(t, true, result, "or must be true OR, not the reference's always-false reduce bug")
}

func Test_Condition_OrOfEmptyListIsFalse(t *testing.T) {
	e := mustEngine(t)
	rule := map[string]any{"or": []any{}}
	result, err := e.Evaluate(rule, trigger.NewMapResolver(nil))
	require.NoError(t, err)
	require.Equal(t, false, result)
}

func Test_Condition_NotNegates(t *testing.T) {
	e := mustEngine(t)
	rule := map[string]any{"not": []any{false}}
	result, err := e.Evaluate(rule, trigger.NewMapResolver(nil))
	require.NoError(t, err)
	require.Equal(t, true, result)
}

func Test_Condition_BoolCoercesTruthy(t *testing.T) {
	e := mustEngine(t)
	rule := map[string]any{"bool": []any{""}}
	result, err := e.Evaluate(rule, trigger.NewMapResolver(nil))
	require.NoError(t, err)
	require.Equal(t, false, result)
}

func Test_Condition_ScalarSyntaxSugarWrapsInList(t *testing.T) {
	e := mustEngine(t)
	rule := map[string]any{"not": true}
	result, err := e.Evaluate(rule, trigger.NewMapResolver(nil))
	require.NoError(t, err)
	require.Equal(t, false, result)
}

func Test_Condition_ComparisonOnFloats(t *testing.T) {
	e := mustEngine(t)
	rule := map[string]any{"gt": []any{float64(10), float64(5)}}
	result, err := e.Evaluate(rule, trigger.NewMapResolver(nil))
	require.NoError(t, err)
	require.Equal(t, true, result)
}

func Test_Condition_ComparisonOnIncomparableTypesIsFalseNotError(t *testing.T) {
	e := mustEngine(t)
	rule := map[string]any{"gt": []any{"not-a-number", map[string]any{"x": 1}}}
	result, err := e.Evaluate(rule, trigger.NewMapResolver(nil))
	require.NoError(t, err)
	require.Equal(t, false, result)
}

func Test_Condition_NestedOperators(t *testing.T) {
	e := mustEngine(t)
	rule := map[string]any{
		"and": []any{
			map[string]any{"eq": []any{map[string]any{"var": "status"}, "ok"}},
			map[string]any{"gt": []any{map[string]any{"var": "count"}, float64(1)}},
		},
	}
	data := map[string]any{"status": "ok", "count": float64(2)}
	result, err := e.Evaluate(rule, trigger.NewMapResolver(data))
	require.NoError(t, err)
	require.Equal(t, true, result)
}
