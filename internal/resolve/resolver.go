// Package resolve implements spec §4.3: the resolver that walks graph
// items on demand, rewriting @, %, and $ markers into resolved values,
// detecting cycles, and caching results. `%` macros are already
// expanded at graph-build time (internal/graph), so this package only
// ever sees `@` references and `$` expressions.
package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/project-lighter/sparkwheel/internal/ctxlog"
	"github.com/project-lighter/sparkwheel/internal/errs"
	"github.com/project-lighter/sparkwheel/internal/eval"
	"github.com/project-lighter/sparkwheel/internal/graph"
	"github.com/project-lighter/sparkwheel/internal/ident"
	"github.com/project-lighter/sparkwheel/internal/instantiate"
	"github.com/project-lighter/sparkwheel/internal/metrics"
	"github.com/project-lighter/sparkwheel/internal/node"
	"github.com/project-lighter/sparkwheel/internal/registry"
	"github.com/project-lighter/sparkwheel/internal/settings"
)

// Resolver walks a graph.Graph's items on demand. It owns the resolved
// cache and the in-progress set (spec §4.3), both stored directly on
// graph.Item so a mutation that replaces an item's raw node (graph.Set)
// invalidates its cached value for free. A Resolver belongs to exactly
// one Config and is not safe for concurrent use — spec §5's
// single-threaded cooperative model per instance.
type Resolver struct {
	Graph     *graph.Graph
	Eval      eval.Evaluator
	Registry  *registry.Registry
	Settings  settings.Settings
	Metrics   *metrics.Metrics
	Namespace map[string]any // caller-supplied expression globals, e.g. preloaded modules

	stack []string // ordered in-progress identifiers, used only to report a cycle's participants
}

// New builds a Resolver over g.
func New(g *graph.Graph, evaluator eval.Evaluator, reg *registry.Registry, s settings.Settings, m *metrics.Metrics) *Resolver {
	return &Resolver{Graph: g, Eval: evaluator, Registry: reg, Settings: s, Metrics: m}
}

// Resolve materializes the value of idText — the top-level entry point
// of spec §4.3's resolution algorithm. An idText that names nothing in
// the graph always fails with KeyNotFoundError; this is distinct from
// a missing `@`-reference encountered while resolving another item's
// marker (see resolveReference), where AllowMissingReference may
// degrade the failure to nil instead.
func (r *Resolver) Resolve(ctx context.Context, idText string) (any, error) {
	id, err := ident.Parse(idText)
	if err != nil {
		return nil, &errs.ParseError{Input: idText, Cause: err.Error()}
	}
	if !r.Graph.Has(id.String()) {
		return nil, errs.NewKeyNotFoundError(id.String(), r.Graph.Keys(), 5)
	}

	correlationID := uuid.New().String()
	logger := ctxlog.FromContext(ctx).With().Str("resolve_id", correlationID).Logger()
	ctx = ctxlog.WithLogger(ctx, logger)

	logger.Debug().Str("identifier", id.String()).Msg("resolve started")
	value, err := r.resolveID(ctx, id)
	logger.Debug().Str("identifier", id.String()).Err(err).Msg("resolve finished")
	return value, err
}

// ResolveChild implements instantiate.ArgResolver, letting the
// instantiator resolve a site's own children (its _args_, kwargs,
// _requires_ entries, and so on) through this same cached, cycle-safe
// path.
func (r *Resolver) ResolveChild(ctx context.Context, child ident.Identifier) (any, error) {
	return r.resolveID(ctx, child)
}

// resolveID is steps 1-6 of spec §4.3's resolution algorithm for one
// canonical identifier.
func (r *Resolver) resolveID(ctx context.Context, id ident.Identifier) (any, error) {
	key := id.String()
	item, ok := r.Graph.Items[key]
	if !ok {
		return nil, errs.NewKeyNotFoundError(key, r.Graph.Keys(), 5)
	}

	switch item.State {
	case graph.Resolved:
		if r.Metrics != nil {
			r.Metrics.ObserveCacheHit()
		}
		return item.Value, nil
	case graph.InProgress:
		participants := append(append([]string{}, r.stack...), key)
		return nil, &errs.CycleError{Participants: participants}
	}

	if item.Deps == nil {
		item.Deps = scanScalarDeps(item.Raw, item.ID)
		if len(item.Deps) > 0 {
			logger := ctxlog.FromContext(ctx)
			logger.Debug().Str("identifier", key).Strs("deps", item.Deps).Msg("dependency set scanned")
		}
	}

	item.State = graph.InProgress
	r.stack = append(r.stack, key)
	start := time.Now()

	value, err := r.resolveNode(ctx, item.ID, item.Raw)

	r.stack = r.stack[:len(r.stack)-1]
	if err != nil {
		// Spec §7: "a failed resolution leaves the item unresolved so
		// a corrected state can be reattempted after mutation" — the
		// cache is never poisoned by a transient or user-fixable error.
		item.State = graph.Unresolved
		if r.Metrics != nil {
			r.Metrics.ObserveResolve(time.Since(start), true)
		}
		return nil, err
	}

	item.Value = value
	item.State = graph.Resolved
	if r.Metrics != nil {
		r.Metrics.ObserveResolve(time.Since(start), false)
	}
	return value, nil
}

// resolveNode rewrites raw per spec §4.3 step 5: mapping/sequence
// nodes recurse into their already-graphed children; scalar strings
// are scanned for markers; directive mappings hand off to the
// instantiator. An Opaque node (a macro splice) is returned as its
// plain Go conversion unconditionally — it is inert data, never an
// instantiation site, regardless of what keys it happens to contain
// (spec scenario 8).
func (r *Resolver) resolveNode(ctx context.Context, id ident.Identifier, raw *node.Node) (any, error) {
	if raw.Opaque {
		return raw.ToAny(), nil
	}

	switch raw.Kind {
	case node.KindMapping:
		if instantiate.IsSite(raw) {
			return instantiate.Invoke(ctx, id, raw, r, r.Registry)
		}
		out := make(map[string]any, len(raw.Keys))
		for _, k := range raw.Keys {
			v, err := r.resolveID(ctx, id.Child(ident.NewSegment(k)))
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil

	case node.KindSequence:
		out := make([]any, len(raw.Seq))
		for i := range raw.Seq {
			v, err := r.resolveID(ctx, id.Child(ident.NewSegment(fmt.Sprintf("%d", i))))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case node.KindScalar:
		return r.resolveScalar(ctx, id, raw)

	default:
		return nil, fmt.Errorf("resolve: unknown node kind %v", raw.Kind)
	}
}
