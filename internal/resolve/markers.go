package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/project-lighter/sparkwheel/internal/ctxlog"
	"github.com/project-lighter/sparkwheel/internal/errs"
	"github.com/project-lighter/sparkwheel/internal/ident"
	"github.com/project-lighter/sparkwheel/internal/node"
)

// resolveScalar interprets the marker (if any) held by a scalar string
// node, per the table in spec §4.3/§6. `%` macros never reach here —
// graph.Build already spliced and marked them Opaque.
func (r *Resolver) resolveScalar(ctx context.Context, id ident.Identifier, raw *node.Node) (any, error) {
	s, ok := raw.IsScalarString()
	if !ok {
		return raw.Scalar, nil
	}

	switch {
	case len(s) > 1 && s[0] == '$':
		return r.resolveExpression(ctx, id, s[1:])

	case len(s) > 1 && s[0] == '@':
		run, rest := scanIdentRun(s[1:])
		if run != "" && rest == "" {
			// The whole scalar is exactly @ID: the substituted value
			// keeps its native type (spec §4.3/§6).
			return r.resolveReference(ctx, id, run)
		}
		// Anything else with an @ in it is a reference embedded in
		// surrounding text: each @ID is coerced to its string form
		// and spliced in (spec §9).
		return r.spliceReferences(ctx, id, s)

	case strings.Contains(s, "@"):
		return r.spliceReferences(ctx, id, s)

	default:
		return s, nil
	}
}

// spliceReferences scans s for every `@ID` run, resolves each against
// owner, and splices its string form into the surrounding text.
func (r *Resolver) spliceReferences(ctx context.Context, owner ident.Identifier, s string) (any, error) {
	var sb strings.Builder
	for i := 0; i < len(s); {
		if s[i] != '@' {
			sb.WriteByte(s[i])
			i++
			continue
		}
		run, _ := scanIdentRun(s[i+1:])
		if run == "" {
			sb.WriteByte(s[i])
			i++
			continue
		}
		val, err := r.resolveReference(ctx, owner, run)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&sb, "%v", val)
		i += 1 + len(run)
	}
	return sb.String(), nil
}

// resolveExpression evaluates a `$SRC` scalar: every `@ID` occurrence
// in SRC is first rewritten to a unique binding name holding ID's
// resolved value, then SRC is handed to the configured eval.Evaluator.
func (r *Resolver) resolveExpression(ctx context.Context, id ident.Identifier, source string) (any, error) {
	if r.Settings.DisableExpressions {
		return "$" + source, nil
	}

	rewritten, bindings, err := r.rewriteReferences(ctx, id, source)
	if err != nil {
		return nil, err
	}

	result, err := r.Eval.Eval(ctx, rewritten, bindings, r.Namespace)
	if err != nil {
		return nil, &errs.ExpressionError{Identifier: id.String(), Source: source, Cause: err}
	}
	return result, nil
}

// rewriteReferences replaces every `@ID` run in source with a unique
// binding name, resolving ID along the way. The text following the
// identifier run (e.g. `.method(...)`, `[key]`) is left untouched as
// expression source, per spec §4.3's "@ID.method(...)" grammar note.
func (r *Resolver) rewriteReferences(ctx context.Context, owner ident.Identifier, source string) (string, map[string]any, error) {
	var sb strings.Builder
	bindings := make(map[string]any)
	n := 0

	for i := 0; i < len(source); {
		if source[i] != '@' {
			sb.WriteByte(source[i])
			i++
			continue
		}
		run, _ := scanIdentRun(source[i+1:])
		if run == "" {
			sb.WriteByte(source[i])
			i++
			continue
		}
		val, err := r.resolveReference(ctx, owner, run)
		if err != nil {
			return "", nil, err
		}
		name := fmt.Sprintf("__ref%d", n)
		n++
		bindings[name] = val
		sb.WriteString(name)
		i += 1 + len(run)
	}
	return sb.String(), bindings, nil
}

// resolveReference resolves idText — absolute or relative — against
// owner, the identifier of the item whose marker is being expanded
// (spec §4.1 relative-identifier join rule). A target absent from the
// graph normally fails with KeyNotFoundError; under
// Settings.AllowMissingReference it instead degrades to nil with a
// logged warning, spec §6's "forward-referencing templates" mode.
func (r *Resolver) resolveReference(ctx context.Context, owner ident.Identifier, idText string) (any, error) {
	target, err := ident.JoinText(owner, idText)
	if err != nil {
		return nil, &errs.ParseError{Input: idText, Cause: err.Error()}
	}
	if !r.Graph.Has(target.String()) {
		if r.Settings.AllowMissingReference {
			logMissingReference(ctx, target.String())
			return nil, nil
		}
		return nil, errs.NewKeyNotFoundError(target.String(), r.Graph.Keys(), 5)
	}
	return r.resolveID(ctx, target)
}

// scanIdentRun returns the longest leading run of identifier
// characters in s — letters, digits, underscore, and ":" (so a
// "::"-joined or relative "::sibling" form is captured whole) — plus
// whatever remains after it.
func scanIdentRun(s string) (run string, rest string) {
	i := 0
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func isIdentChar(b byte) bool {
	return b == ':' || b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// scanScalarDeps produces the syntactic dependency set spec §4.3 asks
// the resolver to cache on each item: every @ID reference textually
// present in a scalar string, joined against owner to its absolute
// form. Mapping/sequence items need no scan — their "dependencies"
// are just their own children, already separate graph items.
func scanScalarDeps(raw *node.Node, owner ident.Identifier) []string {
	deps := []string{}
	if raw.Kind != node.KindScalar {
		return deps
	}
	s, ok := raw.IsScalarString()
	if !ok {
		return deps
	}
	for i := 0; i < len(s); {
		if s[i] != '@' {
			i++
			continue
		}
		run, _ := scanIdentRun(s[i+1:])
		if run == "" {
			i++
			continue
		}
		if target, err := ident.JoinText(owner, run); err == nil {
			deps = append(deps, target.String())
		}
		i += 1 + len(run)
	}
	return deps
}

func logMissingReference(ctx context.Context, identifier string) {
	logger := ctxlog.FromContext(ctx)
	logger.Warn().Str("identifier", identifier).Msg("missing reference degraded to nil")
}
