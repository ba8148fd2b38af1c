package merge

import (
	"testing"

	"github.com/project-lighter/sparkwheel/internal/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverride_ComposeLiteral(t *testing.T) {
	tree, err := ParseOverride("k::p=42")
	require.NoError(t, err)

	k, ok := tree.Get("k")
	require.True(t, ok)
	p, ok := k.Get("p")
	require.True(t, ok)
	assert.Equal(t, node.OpNone, k.Ops["p"])
	assert.Equal(t, int64(42), p.Scalar)
}

func TestParseOverride_ReplacePrefix(t *testing.T) {
	tree, err := ParseOverride("=k::p={a: 1}")
	require.NoError(t, err)

	k, _ := tree.Get("k")
	assert.Equal(t, node.OpReplace, k.Ops["p"])
}

func TestParseOverride_DeleteWithoutLiteral(t *testing.T) {
	tree, err := ParseOverride("~k::p")
	require.NoError(t, err)

	k, _ := tree.Get("k")
	assert.Equal(t, node.OpDelete, k.Ops["p"])
	p, _ := k.Get("p")
	assert.Nil(t, p.Scalar)
}

func TestParseOverride_RejectsMissingLiteralWithoutDelete(t *testing.T) {
	_, err := ParseOverride("k::p")
	require.Error(t, err)
}

func TestDecodeLiteral_StructuredForms(t *testing.T) {
	assert.Equal(t, int64(42), DecodeLiteral("42").Scalar)
	assert.Equal(t, true, DecodeLiteral("true").Scalar)
	assert.Nil(t, DecodeLiteral("null").Scalar)
	assert.Equal(t, "hello", DecodeLiteral("hello").Scalar)

	list := DecodeLiteral("[1, 2, 3]")
	require.Equal(t, node.KindSequence, list.Kind)
	require.Len(t, list.Seq, 3)

	obj := DecodeLiteral("{a: 1, b: 2}")
	require.Equal(t, node.KindMapping, obj.Kind)
	a, _ := obj.Get("a")
	assert.Equal(t, int64(1), a.Scalar)
}

// P8: override roundtrip.
func TestOverride_Roundtrip(t *testing.T) {
	base := yamlTree(t, "k:\n  p: 1\n")
	overrideTree, err := BuildOverrideTree([]string{"k::p=7"})
	require.NoError(t, err)

	merged, err := Merge([]*node.Node{base, overrideTree})
	require.NoError(t, err)

	k, _ := merged.Get("k")
	p, _ := k.Get("p")
	assert.Equal(t, int64(7), p.Scalar)
}

func TestBuildOverrideTree_CombinesMultipleStrings(t *testing.T) {
	tree, err := BuildOverrideTree([]string{"k::p=1", "k::q=2"})
	require.NoError(t, err)

	k, ok := tree.Get("k")
	require.True(t, ok)
	p, _ := k.Get("p")
	q, _ := k.Get("q")
	assert.Equal(t, int64(1), p.Scalar)
	assert.Equal(t, int64(2), q.Scalar)
}
