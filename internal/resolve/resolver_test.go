package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/project-lighter/sparkwheel/internal/errs"
	"github.com/project-lighter/sparkwheel/internal/eval"
	"github.com/project-lighter/sparkwheel/internal/graph"
	"github.com/project-lighter/sparkwheel/internal/node"
	"github.com/project-lighter/sparkwheel/internal/registry"
	"github.com/project-lighter/sparkwheel/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEval is a minimal eval.Evaluator: it records the rewritten
// source and bindings it was called with, and computes "__refN + K"
// style arithmetic just well enough to exercise reference rewriting
// without pulling in a real expression grammar.
type stubEval struct {
	calls       int
	gotSource   string
	gotBindings map[string]any
}

func (s *stubEval) Eval(ctx context.Context, source string, bindings map[string]any, namespace map[string]any) (any, error) {
	s.calls++
	s.gotSource = source
	s.gotBindings = bindings
	if v, ok := bindings["__ref0"]; ok {
		if n, ok := v.(int64); ok {
			return n + 1, nil
		}
	}
	return source, nil
}

var _ eval.Evaluator = (*stubEval)(nil)

func buildResolver(t *testing.T, src string, ev eval.Evaluator, reg *registry.Registry, s settings.Settings) *Resolver {
	t.Helper()
	root, err := node.FromYAML([]byte(src), false)
	require.NoError(t, err)
	g, err := graph.Build(root, nil)
	require.NoError(t, err)
	if reg == nil {
		reg = registry.New()
	}
	if ev == nil {
		ev = &stubEval{}
	}
	return New(g, ev, reg, s, nil)
}

func TestResolve_SimpleReference(t *testing.T) {
	r := buildResolver(t, "a: 1\nb: \"@a\"\n", nil, nil, settings.Settings{})
	v, err := r.Resolve(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

// P1: resolve(X) called twice returns identical values.
func TestResolve_Idempotent(t *testing.T) {
	stub := &stubEval{}
	r := buildResolver(t, "a: 1\nb: \"@a\"\n", stub, nil, settings.Settings{})
	ctx := context.Background()

	v1, err := r.Resolve(ctx, "b")
	require.NoError(t, err)
	v2, err := r.Resolve(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, graph.Resolved, r.Graph.Items["b"].State)
}

// P5: a proper cycle among @-references fails with CycleError for any
// participating identifier.
func TestResolve_CycleDetection(t *testing.T) {
	r := buildResolver(t, "a: \"@b\"\nb: \"@a\"\n", nil, nil, settings.Settings{})
	_, err := r.Resolve(context.Background(), "a")
	require.Error(t, err)

	var cycleErr *errs.CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Contains(t, cycleErr.Participants, "a")
	assert.Contains(t, cycleErr.Participants, "b")
}

// P6: a relative reference from inside an item resolves to the same
// value as the equivalent absolute top-level query.
func TestResolve_RelativeEquivalence(t *testing.T) {
	src := "a:\n  b: 1\n  c: \"@::b\"\n"
	r := buildResolver(t, src, nil, nil, settings.Settings{})
	ctx := context.Background()

	viaRelative, err := r.Resolve(ctx, "a::c")
	require.NoError(t, err)
	viaAbsolute, err := r.Resolve(ctx, "a::b")
	require.NoError(t, err)
	assert.Equal(t, viaAbsolute, viaRelative)
}

func TestResolve_ExpressionWithReference(t *testing.T) {
	stub := &stubEval{}
	r := buildResolver(t, "x: 41\ny: \"$@x + 1\"\n", stub, nil, settings.Settings{})
	v, err := r.Resolve(context.Background(), "y")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
	assert.Equal(t, "__ref0 + 1", stub.gotSource)
	assert.Equal(t, int64(41), stub.gotBindings["__ref0"])
}

func TestResolve_MissingReferenceFailsByDefault(t *testing.T) {
	r := buildResolver(t, "a: \"@nope\"\n", nil, nil, settings.Settings{})
	_, err := r.Resolve(context.Background(), "a")
	require.Error(t, err)
	var notFound *errs.KeyNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestResolve_MissingReferenceDegradesWhenAllowed(t *testing.T) {
	r := buildResolver(t, "a: \"@nope\"\n", nil, nil, settings.Settings{AllowMissingReference: true})
	v, err := r.Resolve(context.Background(), "a")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestResolve_DisableExpressionsReturnsLiteral(t *testing.T) {
	r := buildResolver(t, "x: \"$1+1\"\n", nil, nil, settings.Settings{DisableExpressions: true})
	v, err := r.Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "$1+1", v)
}

func TestResolve_WholeScalarReferenceKeepsNativeType(t *testing.T) {
	r := buildResolver(t, "a:\n  - 1\n  - 2\nb: \"@a\"\n", nil, nil, settings.Settings{})
	v, err := r.Resolve(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, v)
}

func TestResolve_EmbeddedReferenceSplicesAsString(t *testing.T) {
	r := buildResolver(t, "a: 1\nb: \"prefix @a suffix\"\n", nil, nil, settings.Settings{})
	v, err := r.Resolve(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "prefix 1 suffix", v)
}

func TestResolve_MultipleReferencesSpliceIntoOneString(t *testing.T) {
	r := buildResolver(t, "a: 1\nb: 2\nc: \"@a-@b\"\n", nil, nil, settings.Settings{})
	v, err := r.Resolve(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, "1-2", v)
}

// Scenario 6: instantiation with a nested reference flowing into its
// arguments.
func TestResolve_InstantiationWithNestedReference(t *testing.T) {
	reg := registry.New()
	reg.Register("math.add", func(a, b int64) (int64, error) { return a + b, nil })

	src := "base: 10\nsum:\n  _target_: math.add\n  _args_:\n    - \"@base\"\n    - 2\n"
	r := buildResolver(t, src, nil, reg, settings.Settings{})
	v, err := r.Resolve(context.Background(), "sum")
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)
}

func TestResolve_DisabledSiteNeverInvokesTarget(t *testing.T) {
	reg := registry.New()
	reg.Register("must.not.run", func() (int64, error) {
		panic("must not be invoked")
	})

	src := "skip:\n  _disabled_: true\n  _target_: must.not.run\n"
	r := buildResolver(t, src, nil, reg, settings.Settings{})
	v, err := r.Resolve(context.Background(), "skip")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestResolve_MappingResolvesEachChild(t *testing.T) {
	src := "m:\n  a: 1\n  b: \"@m::a\"\n"
	r := buildResolver(t, src, nil, nil, settings.Settings{})
	v, err := r.Resolve(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": int64(1), "b": int64(1)}, v)
}
