// Package sparkwheel is a declarative configuration engine: it merges
// layered YAML configuration, flattens the result into a graph of
// config items, and resolves those items on demand — following `@`
// references, `%` macros, and `$` expressions, and invoking registered
// components at instantiation sites (spec §§1-4). Config is the single
// entry point tying the merger, graph, and resolver together.
package sparkwheel

import (
	"context"
	"time"

	"github.com/project-lighter/sparkwheel/internal/errs"
	"github.com/project-lighter/sparkwheel/internal/eval"
	"github.com/project-lighter/sparkwheel/internal/graph"
	"github.com/project-lighter/sparkwheel/internal/ident"
	"github.com/project-lighter/sparkwheel/internal/merge"
	"github.com/project-lighter/sparkwheel/internal/metrics"
	"github.com/project-lighter/sparkwheel/internal/node"
	"github.com/project-lighter/sparkwheel/internal/registry"
	"github.com/project-lighter/sparkwheel/internal/resolve"
	"github.com/project-lighter/sparkwheel/internal/settings"
)

// Error kinds re-exported from internal/errs (spec §7), so callers
// never need to import the internal package directly.
type (
	ParseError         = errs.ParseError
	MergeError         = errs.MergeError
	KeyNotFoundError   = errs.KeyNotFoundError
	CycleError         = errs.CycleError
	ExpressionError    = errs.ExpressionError
	InstantiationError = errs.InstantiationError
	ValidationError    = errs.ValidationError
)

// ExitCode maps err to the process exit status of spec §6: 0 success,
// 1 merge/validation/parse error, 2 resolution error, 3 instantiation
// error.
func ExitCode(err error) int { return errs.ExitCode(err) }

// Node is the raw tree type returned by Get and accepted by Set and
// AddTree (spec §3's Node).
type Node = node.Node

// Settings mirrors spec §6's environment toggles.
type Settings = settings.Settings

// Config is a single configuration instance: an ordered list of raw
// layers, their merge, the graph flattened from the merge, and the
// resolver that walks it. It is not safe for concurrent use (spec §5).
type Config struct {
	settings  settings.Settings
	evaluator eval.Evaluator
	registry  *registry.Registry
	metrics   *metrics.Metrics
	namespace map[string]any

	layers   []*node.Node
	merged   *node.Node
	graph    *graph.Graph
	resolver *resolve.Resolver
}

// Option configures a Config at construction time.
type Option func(*Config)

// WithEvaluator selects the expression evaluator for `$` markers.
// Defaults to a Starlark evaluator (eval.NewStarlark) when omitted.
func WithEvaluator(e eval.Evaluator) Option {
	return func(c *Config) { c.evaluator = e }
}

// WithSettings overrides the environment-toggle defaults loaded from
// SPARKWHEEL_* variables (spec §6).
func WithSettings(s settings.Settings) Option {
	return func(c *Config) { c.settings = s }
}

// WithRegistry supplies a pre-populated component registry instead of
// an empty one (spec §4.5's locate(path) → callable).
func WithRegistry(r *registry.Registry) Option {
	return func(c *Config) { c.registry = r }
}

// WithNamespace supplies the caller-provided globals expression source
// sees in addition to its `@ID` bindings (spec §4.3's "namespace").
func WithNamespace(ns map[string]any) Option {
	return func(c *Config) { c.namespace = ns }
}

// WithMetrics attaches Prometheus instrumentation. Omitted, Config
// runs with metrics disabled (metrics.New(false, "")).
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Config) { c.metrics = m }
}

// New builds an empty Config ready for Load/AddTree followed by
// Build (or Resolve, which builds lazily on first use).
func New(opts ...Option) *Config {
	c := &Config{
		settings:  settings.Load(),
		evaluator: eval.NewStarlark(0),
		registry:  registry.New(),
		metrics:   metrics.New(false, ""),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads and appends one or more YAML files as raw layers, in the
// order given — the "ordered list of raw trees" spec §4.2 merges.
func (c *Config) Load(paths ...string) error {
	for _, path := range paths {
		n, err := node.LoadYAMLFile(path, c.settings.StrictKeys)
		if err != nil {
			return err
		}
		c.layers = append(c.layers, n)
	}
	return nil
}

// AddTree appends an already-parsed raw tree as the next layer — the
// entry point for in-memory or programmatically built configuration.
func (c *Config) AddTree(n *node.Node) {
	c.layers = append(c.layers, n)
}

// Merge folds the accumulated layers, plus any override strings
// (spec §6's `[~|=]<identifier>=<literal>` form), into a single raw
// tree and discards any previously built graph/resolver — a fresh
// Build or Resolve call will rebuild them.
func (c *Config) Merge(overrides ...string) error {
	layers := c.layers
	if len(overrides) > 0 {
		overrideTree, err := merge.BuildOverrideTree(overrides)
		if err != nil {
			return err
		}
		layers = append(append([]*node.Node{}, c.layers...), overrideTree)
	}

	start := time.Now()
	merged, err := merge.Merge(layers)
	if err != nil {
		return err
	}
	c.metrics.ObserveMerge(time.Since(start))

	c.merged = merged
	c.graph = nil
	c.resolver = nil
	return nil
}

// Build flattens the merged tree into a graph, expanding `%` macros
// along the way (loading external files lazily via node.LoadYAMLFile,
// spec §4.4). It merges first if Merge hasn't been called yet.
func (c *Config) Build() error {
	if c.merged == nil {
		if err := c.Merge(); err != nil {
			return err
		}
	}

	start := time.Now()
	g, err := graph.Build(c.merged, func(path string) (*node.Node, error) {
		return node.LoadYAMLFile(path, c.settings.StrictKeys)
	})
	if err != nil {
		return err
	}
	c.metrics.ObserveBuild(time.Since(start))

	c.graph = g
	r := resolve.New(g, c.evaluator, c.registry, c.settings, c.metrics)
	r.Namespace = c.namespace
	c.resolver = r
	return nil
}

func (c *Config) ensureBuilt() error {
	if c.resolver != nil {
		return nil
	}
	return c.Build()
}

// Resolve materializes the fully resolved value at idText, per spec
// §4.3. Build runs automatically on first call if it hasn't already.
func (c *Config) Resolve(ctx context.Context, idText string) (any, error) {
	if err := c.ensureBuilt(); err != nil {
		return nil, err
	}
	return c.resolver.Resolve(ctx, idText)
}

// Get returns the raw (pre-resolution) node at idText — spec §4.4's
// get(id).
func (c *Config) Get(idText string) (*Node, bool) {
	if err := c.ensureBuilt(); err != nil {
		return nil, false
	}
	return c.graph.Get(idText)
}

// Has reports whether idText names an item in the built graph.
func (c *Config) Has(idText string) bool {
	if err := c.ensureBuilt(); err != nil {
		return false
	}
	return c.graph.Has(idText)
}

// Keys returns every identifier currently in the graph, unordered.
func (c *Config) Keys() []string {
	if err := c.ensureBuilt(); err != nil {
		return nil
	}
	return c.graph.Keys()
}

// Set replaces the raw subtree at idText with value and flushes the
// resolved cache — spec §4.4's set(id, value). Spec §5 permits a
// conservative full-cache flush in place of computing the exact
// transitive-dependent closure, which is what this does.
func (c *Config) Set(idText string, value *Node) error {
	if err := c.ensureBuilt(); err != nil {
		return err
	}
	id, err := ident.Parse(idText)
	if err != nil {
		return &errs.ParseError{Input: idText, Cause: err.Error()}
	}
	if err := c.graph.Set(id, value); err != nil {
		return err
	}
	c.flushCache()
	return nil
}

// Update re-merges the accumulated layers with the given override
// strings and rebuilds the graph — spec §4.4's update(overrides).
func (c *Config) Update(overrides ...string) error {
	if err := c.Merge(overrides...); err != nil {
		return err
	}
	return c.Build()
}

// Register binds name to fn in this Config's component registry —
// spec §4.5's locate(path) → callable, substituted by a static map
// per spec §9's design note on dotted component paths.
func (c *Config) Register(name string, fn registry.Constructor) {
	c.registry.Register(name, fn)
}

func (c *Config) flushCache() {
	for _, item := range c.graph.Items {
		item.State = graph.Unresolved
		item.Value = nil
	}
}
