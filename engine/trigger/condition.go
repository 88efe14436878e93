package trigger

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// VarResolver resolves a `{"var": "dotted.path"}` leaf against whatever
// event representation the caller has on hand.
type VarResolver interface {
	Resolve(path string) (any, bool)
}

// MapResolver walks a decoded map[string]any by dotted path — the shape an
// already-unmarshaled bus.Event.Data arrives in.
type MapResolver struct {
	data map[string]any
}

func NewMapResolver(data map[string]any) MapResolver { return MapResolver{data: data} }

func (m MapResolver) Resolve(path string) (any, bool) {
	var cur any = m.data
	for _, key := range splitPath(path) {
		asMap, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := asMap[key]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func splitPath(path string) []string {
	var out []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			out = append(out, path[start:i])
			start = i + 1
		}
	}
	return append(out, path[start:])
}

// comparisonOps maps each binary comparison operator onto the CEL
// expression that implements it; compiled once in NewConditionEngine so
// per-event evaluation only runs Program.Eval.
var comparisonOps = map[string]string{
	"eq": "a == b",
	"ne": "a != b",
	"gt": "a > b",
	"lt": "a < b",
	"ge": "a >= b",
	"le": "a <= b",
}

// ConditionEngine evaluates the condition-trigger expression grammar of
// spec §4.7. Comparisons run through cel-go so mixed numeric/string
// operand types are coerced the way a dynamically-typed original would,
// rather than Go's stricter `==`/`<`; var-path resolution is pluggable via
// VarResolver so the same engine evaluates both a decoded Event.Data map
// and (via a gjson-backed resolver) raw event bytes without an
// intermediate unmarshal.
type ConditionEngine struct {
	programs map[string]cel.Program
}

// NewConditionEngine compiles the comparison programs once.
func NewConditionEngine() (*ConditionEngine, error) {
	env, err := cel.NewEnv(cel.Variable("a", cel.DynType), cel.Variable("b", cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("failed to build condition engine cel env: %w", err)
	}
	programs := make(map[string]cel.Program, len(comparisonOps))
	for op, expr := range comparisonOps {
		ast, iss := env.Compile(expr)
		if iss.Err() != nil {
			return nil, fmt.Errorf("failed to compile condition operator %q: %w", op, iss.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("failed to build condition operator program %q: %w", op, err)
		}
		programs[op] = prg
	}
	return &ConditionEngine{programs: programs}, nil
}

// Evaluate walks rule per the grammar, resolving {"var": ...} leaves
// through resolver. A non-map rule is returned as a literal, matching the
// reference's `check_condition` base case.
func (e *ConditionEngine) Evaluate(rule any, resolver VarResolver) (any, error) {
	m, ok := rule.(map[string]any)
	if !ok {
		return rule, nil
	}
	if len(m) != 1 {
		return nil, fmt.Errorf("condition node must have exactly one operator key, got %d", len(m))
	}
	var op string
	var raw any
	for k, v := range m {
		op, raw = k, v
	}

	if op == "var" {
		path, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("var operator expects a string path, got %T", raw)
		}
		v, found := resolver.Resolve(path)
		if !found {
			return nil, nil
		}
		return v, nil
	}

	values := asList(raw)

	switch op {
	case "and":
		for _, v := range values {
			rv, err := e.Evaluate(v, resolver)
			if err != nil {
				return nil, err
			}
			if !truthy(rv) {
				return false, nil
			}
		}
		return true, nil
	case "or":
		// True n-ary OR: unlike the reference's `reduce(and, args, False)`
		// (which always collapses to false), any truthy child short-circuits
		// this to true — see SPEC_FULL.md §9's resolution of this question.
		for _, v := range values {
			rv, err := e.Evaluate(v, resolver)
			if err != nil {
				return nil, err
			}
			if truthy(rv) {
				return true, nil
			}
		}
		return false, nil
	case "not":
		if len(values) != 1 {
			return nil, fmt.Errorf("not operator expects exactly one child, got %d", len(values))
		}
		rv, err := e.Evaluate(values[0], resolver)
		if err != nil {
			return nil, err
		}
		return !truthy(rv), nil
	case "bool":
		if len(values) != 1 {
			return nil, fmt.Errorf("bool operator expects exactly one child, got %d", len(values))
		}
		rv, err := e.Evaluate(values[0], resolver)
		if err != nil {
			return nil, err
		}
		return truthy(rv), nil
	case "eq", "ne", "gt", "lt", "ge", "le":
		if len(values) != 2 {
			return nil, fmt.Errorf("%s operator expects exactly two children, got %d", op, len(values))
		}
		left, err := e.Evaluate(values[0], resolver)
		if err != nil {
			return nil, err
		}
		right, err := e.Evaluate(values[1], resolver)
		if err != nil {
			return nil, err
		}
		return e.compare(op, left, right)
	default:
		return nil, fmt.Errorf("unknown condition operator %q", op)
	}
}

func (e *ConditionEngine) compare(op string, a, b any) (bool, error) {
	prg, ok := e.programs[op]
	if !ok {
		return false, fmt.Errorf("unknown comparison operator %q", op)
	}
	out, _, err := prg.Eval(map[string]any{"a": a, "b": b})
	if err != nil {
		// Mismatched/incomparable types (e.g. string vs map): not a match.
		return false, nil
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition operator %q did not evaluate to bool", op)
	}
	return result, nil
}

// asList applies the reference's `{"x": 1} => {"x": [1]}` syntax sugar: a
// bare scalar child list becomes a one-element list.
func asList(raw any) []any {
	if list, ok := raw.([]any); ok {
		return list
	}
	return []any{raw}
}

// truthy mirrors Python's bool(): nil, false, zero numbers, and empty
// strings/collections are false; everything else is true.
func truthy(v any) bool {
	switch vv := v.(type) {
	case nil:
		return false
	case bool:
		return vv
	case string:
		return vv != ""
	case int:
		return vv != 0
	case int64:
		return vv != 0
	case float64:
		return vv != 0
	case []any:
		return len(vv) > 0
	case map[string]any:
		return len(vv) > 0
	default:
		return true
	}
}
