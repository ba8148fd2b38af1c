// Package instantiate implements the directive contract of spec §4.5:
// a mapping item carrying a _target_ key is an instantiation site, and
// this package is the only one that interprets its reserved keys — the
// merger and resolver treat them as ordinary mapping keys.
package instantiate

import (
	"context"
	"fmt"
	"reflect"

	"github.com/project-lighter/sparkwheel/internal/ctxlog"
	"github.com/project-lighter/sparkwheel/internal/errs"
	"github.com/project-lighter/sparkwheel/internal/ident"
	"github.com/project-lighter/sparkwheel/internal/node"
	"github.com/project-lighter/sparkwheel/internal/registry"
)

// Reserved directive keys (spec §4.5).
const (
	KeyTarget   = "_target_"
	KeyArgs     = "_args_"
	KeyDisabled = "_disabled_"
	KeyRequires = "_requires_"
	KeyMode     = "_mode_"
)

// Mode is an instantiation site's invocation mode (spec §4.5).
type Mode string

const (
	ModeDefault  Mode = "default"
	ModeCallable Mode = "callable"
	ModeDebug    Mode = "debug"
)

// IsSite reports whether a mapping node is an instantiation site: it
// carries a _target_ key (spec §4.5). The resolver is responsible for
// checking Opaque before calling IsSite — a macro-spliced node is
// never a site even if its data happens to contain the key.
func IsSite(n *node.Node) bool {
	if n == nil || n.Kind != node.KindMapping {
		return false
	}
	_, ok := n.Map[KeyTarget]
	return ok
}

// ArgResolver is the narrow capability instantiate needs from the
// resolver: resolve one of a site's own children to a plain Go value
// through the resolver's ordinary caching and cycle-detection path.
// Declaring the interface on the consumer side (here) rather than on
// resolve (the implementer) lets resolve import instantiate without
// creating an import cycle back from instantiate to resolve.
type ArgResolver interface {
	ResolveChild(ctx context.Context, child ident.Identifier) (any, error)
}

// Invoke runs the directive protocol of spec §4.5 for the mapping node
// n living at id. It returns (nil, nil) when the site is disabled.
func Invoke(ctx context.Context, id ident.Identifier, n *node.Node, resolver ArgResolver, reg *registry.Registry) (any, error) {
	if _, ok := n.Map[KeyDisabled]; ok {
		v, err := resolver.ResolveChild(ctx, id.Child(ident.NewSegment(KeyDisabled)))
		if err != nil {
			return nil, &errs.InstantiationError{Identifier: id.String(), Stage: "disabled", Cause: err}
		}
		if truthy(v) {
			return nil, nil
		}
	}

	if reqNode, ok := n.Map[KeyRequires]; ok {
		if reqNode.Kind != node.KindSequence {
			return nil, &errs.InstantiationError{Identifier: id.String(), Stage: "requires", Cause: fmt.Errorf("%s must be a sequence", KeyRequires)}
		}
		requiresID := id.Child(ident.NewSegment(KeyRequires))
		for i := range reqNode.Seq {
			childID := requiresID.Child(ident.NewSegment(fmt.Sprintf("%d", i)))
			if _, err := resolver.ResolveChild(ctx, childID); err != nil {
				return nil, &errs.InstantiationError{Identifier: id.String(), Stage: "requires", Cause: err}
			}
		}
	}

	if _, ok := n.Map[KeyTarget]; !ok {
		return nil, &errs.InstantiationError{Identifier: id.String(), Stage: "lookup", Cause: fmt.Errorf("missing %s", KeyTarget)}
	}
	targetVal, err := resolver.ResolveChild(ctx, id.Child(ident.NewSegment(KeyTarget)))
	if err != nil {
		return nil, &errs.InstantiationError{Identifier: id.String(), Stage: "lookup", Cause: err}
	}
	target, targetName, err := locate(targetVal, reg)
	if err != nil {
		return nil, &errs.InstantiationError{Identifier: id.String(), Target: targetName, Stage: "lookup", Cause: err}
	}

	var args []any
	if argsNode, ok := n.Map[KeyArgs]; ok {
		if argsNode.Kind != node.KindSequence {
			return nil, &errs.InstantiationError{Identifier: id.String(), Target: targetName, Stage: "args", Cause: fmt.Errorf("%s must be a sequence", KeyArgs)}
		}
		argsID := id.Child(ident.NewSegment(KeyArgs))
		args = make([]any, len(argsNode.Seq))
		for i := range argsNode.Seq {
			childID := argsID.Child(ident.NewSegment(fmt.Sprintf("%d", i)))
			v, err := resolver.ResolveChild(ctx, childID)
			if err != nil {
				return nil, &errs.InstantiationError{Identifier: id.String(), Target: targetName, Stage: "args", Cause: err}
			}
			args[i] = v
		}
	}

	kwargs := make(map[string]any)
	for _, k := range n.Keys {
		if isReserved(k) {
			continue
		}
		v, err := resolver.ResolveChild(ctx, id.Child(ident.NewSegment(k)))
		if err != nil {
			return nil, &errs.InstantiationError{Identifier: id.String(), Target: targetName, Stage: "args", Cause: err}
		}
		kwargs[k] = v
	}

	mode := ModeDefault
	if _, ok := n.Map[KeyMode]; ok {
		v, err := resolver.ResolveChild(ctx, id.Child(ident.NewSegment(KeyMode)))
		if err != nil {
			return nil, &errs.InstantiationError{Identifier: id.String(), Target: targetName, Stage: "mode", Cause: err}
		}
		s, ok := v.(string)
		if !ok {
			return nil, &errs.InstantiationError{Identifier: id.String(), Target: targetName, Stage: "mode", Cause: fmt.Errorf("%s must be a string, got %T", KeyMode, v)}
		}
		mode = Mode(s)
	}

	switch mode {
	case ModeDefault:
		return call(id, targetName, target, args, kwargs)
	case ModeCallable:
		if len(args) == 0 && len(kwargs) == 0 {
			return target, nil
		}
		return partial(target, args, kwargs), nil
	case ModeDebug:
		// Go has no stepwise-debugger hook to attach here; logging the
		// call's inputs and outputs is the deliberate substitute.
		logger := ctxlog.FromContext(ctx)
		logger.Debug().Str("identifier", id.String()).Str("target", targetName).Msg("instantiating under debug mode")
		result, err := call(id, targetName, target, args, kwargs)
		logger.Debug().Str("identifier", id.String()).Interface("result", result).Err(err).Msg("debug invocation finished")
		return result, err
	default:
		return nil, &errs.InstantiationError{Identifier: id.String(), Target: targetName, Stage: "mode", Cause: fmt.Errorf("unknown %s %q", KeyMode, mode)}
	}
}

func isReserved(key string) bool {
	switch key {
	case KeyTarget, KeyArgs, KeyDisabled, KeyRequires, KeyMode:
		return true
	default:
		return false
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

// locate resolves a resolved _target_ value to an invocable Go
// function, per spec §4.5: a string is looked up in reg as a dotted
// path; any other value (e.g. an already-resolved @-reference to a
// registered constructor, or a callable bound straight out of the
// expression namespace) is used directly.
func locate(targetVal any, reg *registry.Registry) (target any, name string, err error) {
	if s, ok := targetVal.(string); ok {
		fn, ok := reg.Lookup(s)
		if !ok {
			return nil, s, fmt.Errorf("component %q not registered", s)
		}
		return fn, s, nil
	}
	if reflect.ValueOf(targetVal).Kind() != reflect.Func {
		return nil, fmt.Sprintf("%v", targetVal), fmt.Errorf("%s resolved to a non-callable, non-string value (%T)", KeyTarget, targetVal)
	}
	return targetVal, "<callable>", nil
}

// call invokes target via reflection, matching the teacher's
// reflect.Value.Call dispatch shape. Positional args fill target's
// parameters left to right; kwargs, when non-empty, is passed as one
// more trailing argument, a map[string]any — Go has no native
// keyword-argument calling convention, so this is the idiomatic
// substitute.
func call(id ident.Identifier, targetName string, target any, args []any, kwargs map[string]any) (any, error) {
	fnVal := reflect.ValueOf(target)
	if fnVal.Kind() != reflect.Func {
		return nil, &errs.InstantiationError{Identifier: id.String(), Target: targetName, Stage: "call", Cause: fmt.Errorf("target is not callable (%T)", target)}
	}
	in := buildCallArgs(fnVal, args, kwargs)
	results := fnVal.Call(in)
	return interpretResults(id, targetName, results)
}

func buildCallArgs(fnVal reflect.Value, args []any, kwargs map[string]any) []reflect.Value {
	t := fnVal.Type()
	in := make([]reflect.Value, 0, len(args)+1)
	for i, a := range args {
		if i < t.NumIn() && !t.IsVariadic() {
			in = append(in, coerce(a, t.In(i)))
		} else {
			in = append(in, reflect.ValueOf(a))
		}
	}
	if len(kwargs) > 0 {
		idx := len(in)
		if idx < t.NumIn() {
			in = append(in, coerce(kwargs, t.In(idx)))
		} else {
			in = append(in, reflect.ValueOf(kwargs))
		}
	}
	return in
}

func coerce(v any, want reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(want)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(want) {
		return rv
	}
	if rv.Type().ConvertibleTo(want) {
		return rv.Convert(want)
	}
	return rv
}

func interpretResults(id ident.Identifier, targetName string, results []reflect.Value) (any, error) {
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0].Interface(), nil
	default:
		last := results[len(results)-1]
		if !last.Type().Implements(reflect.TypeOf((*error)(nil)).Elem()) {
			vals := make([]any, len(results))
			for i, r := range results {
				vals[i] = r.Interface()
			}
			return vals, nil
		}
		if errVal, _ := last.Interface().(error); errVal != nil {
			return nil, &errs.InstantiationError{Identifier: id.String(), Target: targetName, Stage: "call", Cause: errVal}
		}
		if len(results) == 2 {
			return results[0].Interface(), nil
		}
		vals := make([]any, len(results)-1)
		for i := 0; i < len(results)-1; i++ {
			vals[i] = results[i].Interface()
		}
		return vals, nil
	}
}

// partial binds args and kwargs to target, returning a variadic
// function whose extra positional arguments are appended after the
// bound args — the "callable" mode of spec §4.5: "return a partial
// application binding them to target".
func partial(target any, args []any, kwargs map[string]any) any {
	return func(extra ...any) (any, error) {
		allArgs := make([]any, 0, len(args)+len(extra))
		allArgs = append(allArgs, args...)
		allArgs = append(allArgs, extra...)
		return call(ident.Root, "<partial>", target, allArgs, kwargs)
	}
}
