// Package eval defines the pluggable expression-evaluator contract
// sparkwheel's resolver delegates `$` markers to (spec §4.3, §9), plus
// two real embeddings: Starlark and Lua.
package eval

import "context"

// Evaluator evaluates an expression source string against a set of
// resolved bindings (the `@ID` values already resolved for the
// expression's own item) and a namespace of host-supplied globals (e.g.
// preloaded modules). It returns the expression's result as a plain Go
// value — bool, int64, float64, string, nil, []any, or map[string]any.
type Evaluator interface {
	Eval(ctx context.Context, source string, bindings map[string]any, namespace map[string]any) (any, error)
}
