// Package query implements the resource store's filter expression tree
// (SPEC_FULL §5 "a query expression tree (engine/store/query)") and its
// compilation to SQL via Masterminds/squirrel for the Postgres backend.
package query

import "github.com/Masterminds/squirrel"

// Expr is a filter predicate node. The concrete node types below are the
// only implementations; Compile type-switches over them.
type Expr interface {
	isExpr()
}

// Eq matches rows where Column equals Value.
type Eq struct {
	Column string
	Value  any
}

// HasAnnotation matches rows whose JSONB annotations column contains
// key=value, backing the config selector join's "type = annotation"
// match (spec §4.6: "selector.value ⊆ R.metadata.annotations").
type HasAnnotation struct {
	Column string
	Key    string
	Value  string
}

// And requires every child to match.
type And struct{ Children []Expr }

// Or requires at least one child to match.
type Or struct{ Children []Expr }

// Not negates its single child.
type Not struct{ Child Expr }

func (Eq) isExpr()            {}
func (HasAnnotation) isExpr() {}
func (And) isExpr()           {}
func (Or) isExpr()            {}
func (Not) isExpr()           {}

// Compile folds expr into sel's WHERE clause using squirrel's Sqlizer
// composition, so the resulting builder still composes with further
// squirrel calls (Limit, OrderBy, ...) before the caller runs it.
func Compile(sel squirrel.SelectBuilder, expr Expr) squirrel.SelectBuilder {
	if expr == nil {
		return sel
	}
	return sel.Where(toSqlizer(expr))
}

func toSqlizer(expr Expr) squirrel.Sqlizer {
	switch e := expr.(type) {
	case Eq:
		return squirrel.Eq{e.Column: e.Value}
	case HasAnnotation:
		return squirrel.Expr(e.Column+" @> ?", jsonbPair(e.Key, e.Value))
	case And:
		conj := make(squirrel.And, 0, len(e.Children))
		for _, c := range e.Children {
			conj = append(conj, toSqlizer(c))
		}
		return conj
	case Or:
		disj := make(squirrel.Or, 0, len(e.Children))
		for _, c := range e.Children {
			disj = append(disj, toSqlizer(c))
		}
		return disj
	case Not:
		sql, args, err := toSqlizer(e.Child).ToSql()
		if err != nil {
			return squirrel.Expr("TRUE")
		}
		return squirrel.Expr("NOT ("+sql+")", args...)
	default:
		return squirrel.Expr("TRUE")
	}
}

func jsonbPair(key, value string) string {
	return `{"` + key + `": "` + value + `"}`
}
