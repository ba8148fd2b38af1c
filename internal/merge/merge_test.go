package merge

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/project-lighter/sparkwheel/internal/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func yamlTree(t *testing.T, src string) *node.Node {
	t.Helper()
	n, err := node.FromYAML([]byte(src), false)
	require.NoError(t, err)
	return n
}

// Scenario 3: compose-by-default.
func TestMerge_ComposeByDefault(t *testing.T) {
	base := yamlTree(t, "m:\n  p: 1\n  q: 2\n")
	override := yamlTree(t, "m:\n  p: 9\n")

	merged, err := Merge([]*node.Node{base, override})
	require.NoError(t, err)

	m, _ := merged.Get("m")
	p, _ := m.Get("p")
	q, _ := m.Get("q")
	assert.Equal(t, int64(9), p.Scalar)
	assert.Equal(t, int64(2), q.Scalar)
}

// Scenario 4 / P3: replace dominates.
func TestMerge_ReplaceDominates(t *testing.T) {
	base := yamlTree(t, "m:\n  p: 1\n  q: 2\n")
	override := yamlTree(t, "=m:\n  p: 9\n")

	merged, err := Merge([]*node.Node{base, override})
	require.NoError(t, err)

	m, _ := merged.Get("m")
	assert.Equal(t, []string{"p"}, m.Keys)
	p, _ := m.Get("p")
	assert.Equal(t, int64(9), p.Scalar)
}

func TestMerge_ReplaceRequiresKeyToExistInBase(t *testing.T) {
	base := yamlTree(t, "m:\n  p: 1\n")
	override := yamlTree(t, "=missing:\n  p: 9\n")

	_, err := Merge([]*node.Node{base, override})
	require.Error(t, err)
}

// Scenario 5: list extend then delete by index.
func TestMerge_ListExtendThenDeleteByIndex(t *testing.T) {
	base := yamlTree(t, "xs: [a, b, c]\n")
	extend := yamlTree(t, "xs: [d]\n")
	del := yamlTree(t, "~xs: [0, -1]\n")

	merged, err := Merge([]*node.Node{base, extend, del})
	require.NoError(t, err)

	xs, _ := merged.Get("xs")
	require.Len(t, xs.Seq, 2)
	assert.Equal(t, "b", xs.Seq[0].Scalar)
	assert.Equal(t, "c", xs.Seq[1].Scalar)
}

// P7: list extension default.
func TestMerge_ListExtend(t *testing.T) {
	base := yamlTree(t, "xs: [a, b]\n")
	override := yamlTree(t, "xs: [c]\n")

	merged, err := Merge([]*node.Node{base, override})
	require.NoError(t, err)

	xs, _ := merged.Get("xs")
	got := make([]any, len(xs.Seq))
	for i, c := range xs.Seq {
		got[i] = c.Scalar
	}
	assert.Equal(t, []any{"a", "b", "c"}, got)
}

// P4: delete idempotence for null-form.
func TestMerge_DeleteNullIdempotent(t *testing.T) {
	base := yamlTree(t, "m:\n  p: 1\n  q: 2\n")
	del := yamlTree(t, "m:\n  ~q: null\n")

	once, err := Merge([]*node.Node{base, del})
	require.NoError(t, err)
	twice, err := Merge([]*node.Node{once, del})
	require.NoError(t, err)

	m1, _ := once.Get("m")
	m2, _ := twice.Get("m")
	_, ok1 := m1.Get("q")
	_, ok2 := m2.Get("q")
	assert.False(t, ok1)
	assert.False(t, ok2)
}

func TestMerge_DeleteByKeyList(t *testing.T) {
	base := yamlTree(t, "m:\n  a: 1\n  b: 2\n  c: 3\n")
	del := yamlTree(t, "~m: [a, c]\n")

	merged, err := Merge([]*node.Node{base, del})
	require.NoError(t, err)

	m, _ := merged.Get("m")
	assert.Equal(t, []string{"b"}, m.Keys)
}

func TestMerge_DeleteKeyListRequiresExistence(t *testing.T) {
	base := yamlTree(t, "m:\n  a: 1\n")
	del := yamlTree(t, "~missing: [a]\n")

	_, err := Merge([]*node.Node{base, del})
	require.Error(t, err)
}

// P2: compose associativity for conflict-free merges.
func TestMerge_Associative(t *testing.T) {
	a := yamlTree(t, "m:\n  p: 1\n")
	b := yamlTree(t, "n:\n  q: 2\n")
	c := yamlTree(t, "o:\n  r: 3\n")

	left, err := Merge([]*node.Node{a, b, c})
	require.NoError(t, err)

	ab, err := Merge([]*node.Node{a, b})
	require.NoError(t, err)
	right, err := Merge([]*node.Node{ab, c})
	require.NoError(t, err)

	if diff := cmp.Diff(left.ToAny(), right.ToAny()); diff != "" {
		t.Errorf("merge([a,b,c]) != merge([merge(a,b),c]):\n%s", diff)
	}
}

func TestMerge_SequenceAgainstNonSequenceErrors(t *testing.T) {
	base := yamlTree(t, "xs: [1, 2]\n")
	override := yamlTree(t, "xs: 3\n")

	_, err := Merge([]*node.Node{base, override})
	require.Error(t, err)
}

func TestMerge_ScalarReplaceCatchAll(t *testing.T) {
	base := yamlTree(t, "v: 1\n")
	override := yamlTree(t, "v: 2\n")

	merged, err := Merge([]*node.Node{base, override})
	require.NoError(t, err)
	v, _ := merged.Get("v")
	assert.Equal(t, int64(2), v.Scalar)
}

func TestMerge_NoLayersYieldsEmptyMapping(t *testing.T) {
	merged, err := Merge(nil)
	require.NoError(t, err)
	assert.Equal(t, node.KindMapping, merged.Kind)
	assert.Empty(t, merged.Keys)
}

func TestMerge_BaseOwnDeletePrefixIsOmitted(t *testing.T) {
	base := yamlTree(t, "~p: 1\nq: 2\n")
	merged, err := Merge([]*node.Node{base})
	require.NoError(t, err)

	_, ok := merged.Get("p")
	assert.False(t, ok)
	q, ok := merged.Get("q")
	require.True(t, ok)
	assert.Equal(t, int64(2), q.Scalar)
}
