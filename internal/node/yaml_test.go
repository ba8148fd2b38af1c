package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromYAML_ScalarTypes(t *testing.T) {
	root, err := FromYAML([]byte(`
s: hello
i: 42
f: 3.14
b: true
n: null
`), false)
	require.NoError(t, err)

	s, _ := root.Get("s")
	assert.Equal(t, "hello", s.Scalar)

	i, _ := root.Get("i")
	assert.Equal(t, int64(42), i.Scalar)

	f, _ := root.Get("f")
	assert.Equal(t, 3.14, f.Scalar)

	b, _ := root.Get("b")
	assert.Equal(t, true, b.Scalar)

	n, _ := root.Get("n")
	assert.Nil(t, n.Scalar)
}

func TestFromYAML_OperatorPrefixedKeys(t *testing.T) {
	root, err := FromYAML([]byte(`
=replaced: 1
~deleted: 2
plain: 3
`), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"replaced", "deleted", "plain"}, root.Keys)
	assert.Equal(t, OpReplace, root.Ops["replaced"])
	assert.Equal(t, OpDelete, root.Ops["deleted"])
	assert.Equal(t, OpNone, root.Ops["plain"])
}

func TestFromYAML_Sequence(t *testing.T) {
	root, err := FromYAML([]byte(`
items:
  - a
  - b
`), false)
	require.NoError(t, err)

	items, ok := root.Get("items")
	require.True(t, ok)
	require.Equal(t, KindSequence, items.Kind)
	require.Len(t, items.Seq, 2)
	assert.Equal(t, "a", items.Seq[0].Scalar)
}

func TestFromYAML_StrictKeysRejectsDuplicates(t *testing.T) {
	_, err := FromYAML([]byte(`
a: 1
a: 2
`), true)
	require.Error(t, err)
}

func TestFromYAML_NonStrictKeysLastWins(t *testing.T) {
	root, err := FromYAML([]byte(`
a: 1
a: 2
`), false)
	require.NoError(t, err)
	a, _ := root.Get("a")
	assert.Equal(t, int64(2), a.Scalar)
}

func TestFromYAML_EmptyDocument(t *testing.T) {
	root, err := FromYAML([]byte(``), false)
	require.NoError(t, err)
	assert.Equal(t, KindMapping, root.Kind)
	assert.Empty(t, root.Keys)
}
