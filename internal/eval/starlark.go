package eval

import (
	"context"
	"fmt"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Starlark evaluates `$` expressions as a single Starlark expression
// statement, with bindings and namespace entries predeclared as
// globals. A map-valued namespace entry is predeclared as a module, so
// its members are read by attribute (`modules.scale`). Grounded on the retrieval pack's StarlarkEvaluator: a
// timeout-guarded goroutine run, a muted print sink, and a symmetrical
// Go<->Starlark value conversion.
type Starlark struct {
	timeout time.Duration
}

// NewStarlark returns the default expression evaluator. timeout bounds
// a single evaluation; zero selects a 5 second default, generous for a
// config-time expression but short enough to surface a runaway script
// quickly.
func NewStarlark(timeout time.Duration) *Starlark {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Starlark{timeout: timeout}
}

func (s *Starlark) Eval(ctx context.Context, source string, bindings map[string]any, namespace map[string]any) (any, error) {
	evalCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type outcome struct {
		val any
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		v, err := s.evalSync(source, bindings, namespace)
		done <- outcome{val: v, err: err}
	}()

	select {
	case <-evalCtx.Done():
		return nil, fmt.Errorf("eval: starlark expression timed out after %s: %q", s.timeout, source)
	case o := <-done:
		return o.val, o.err
	}
}

func (s *Starlark) evalSync(source string, bindings, namespace map[string]any) (any, error) {
	thread := &starlark.Thread{
		Name:  "sparkwheel",
		Print: func(*starlark.Thread, string) {},
	}

	predeclared := starlark.StringDict{}
	for k, v := range namespace {
		if members, ok := v.(map[string]any); ok {
			mod := &starlarkstruct.Module{Name: k, Members: starlark.StringDict{}}
			for name, member := range members {
				sv, err := toStarlarkValue(member)
				if err != nil {
					return nil, fmt.Errorf("eval: converting namespace entry %q member %q: %w", k, name, err)
				}
				mod.Members[name] = sv
			}
			predeclared[k] = mod
			continue
		}
		sv, err := toStarlarkValue(v)
		if err != nil {
			return nil, fmt.Errorf("eval: converting namespace entry %q: %w", k, err)
		}
		predeclared[k] = sv
	}
	for k, v := range bindings {
		sv, err := toStarlarkValue(v)
		if err != nil {
			return nil, fmt.Errorf("eval: converting binding %q: %w", k, err)
		}
		predeclared[k] = sv
	}

	result, err := starlark.Eval(thread, "expr.star", source, predeclared)
	if err != nil {
		return nil, fmt.Errorf("eval: starlark evaluation failed: %w", err)
	}
	return fromStarlarkValue(result)
}

func toStarlarkValue(v any) (starlark.Value, error) {
	switch val := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []any:
		items := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			items[i] = sv
		}
		return starlark.NewList(items), nil
	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("eval: unsupported binding type %T", v)
	}
}

func fromStarlarkValue(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("eval: starlark integer too large for int64")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		out := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case *starlark.Dict:
		out := make(map[string]any, val.Len())
		for _, kv := range val.Items() {
			key, ok := kv[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("eval: starlark dict key must be a string, got %s", kv[0].Type())
			}
			value, err := fromStarlarkValue(kv[1])
			if err != nil {
				return nil, err
			}
			out[string(key)] = value
		}
		return out, nil
	default:
		return nil, fmt.Errorf("eval: unsupported starlark result type %s", v.Type())
	}
}
