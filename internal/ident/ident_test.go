package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Absolute(t *testing.T) {
	id, err := Parse("model::layers::0::weights")
	require.NoError(t, err)
	require.Len(t, id.Segments, 4)
	assert.Equal(t, "model", id.Segments[0].Raw)
	assert.False(t, id.Segments[0].IsNumeric)
	assert.True(t, id.Segments[2].IsNumeric)
	assert.Equal(t, 0, id.Segments[2].Index)
	assert.Equal(t, 0, id.Relative)
	assert.Equal(t, "model::layers::0::weights", id.String())
}

func TestParse_Empty(t *testing.T) {
	id, err := Parse("")
	require.NoError(t, err)
	assert.True(t, id.IsRoot())
}

func TestParse_LegacySeparator(t *testing.T) {
	id, err := Parse("model#layers#0")
	require.NoError(t, err)
	assert.Equal(t, "model::layers::0", id.String())
}

func TestParse_RelativeCounts(t *testing.T) {
	sibling, err := Parse("::foo")
	require.NoError(t, err)
	assert.Equal(t, 1, sibling.Relative)
	require.Len(t, sibling.Segments, 1)
	assert.Equal(t, "foo", sibling.Segments[0].Raw)

	cousin, err := Parse("::::cousin")
	require.NoError(t, err)
	assert.Equal(t, 2, cousin.Relative)
}

func TestParse_RejectsWhitespace(t *testing.T) {
	_, err := Parse("a:: b")
	require.Error(t, err)
}

func TestParse_RejectsEmbeddedEmptySegment(t *testing.T) {
	_, err := Parse("a::::b") // non-leading empty segment ("a", "", "b")
	require.Error(t, err)
}

func TestJoin_Absolute(t *testing.T) {
	a, _ := Parse("model::layers")
	b, _ := Parse("0")
	joined, err := Join(a, b)
	require.NoError(t, err)
	assert.Equal(t, "model::layers::0", joined.String())
}

// Sibling: one leading "::" strips exactly one trailing segment from the
// owner before appending — spec §9 design note and the worked example
// "`::foo` inside item at `a::b` resolves the same as absolute `a::foo`".
func TestJoin_Sibling(t *testing.T) {
	owner, _ := Parse("a::b")
	rel, _ := Parse("::foo")
	joined, err := Join(owner, rel)
	require.NoError(t, err)
	assert.Equal(t, "a::foo", joined.String())
}

func TestJoin_Cousin(t *testing.T) {
	owner, _ := Parse("a::b::c")
	rel, _ := Parse("::::cousin")
	joined, err := Join(owner, rel)
	require.NoError(t, err)
	assert.Equal(t, "a::cousin", joined.String())
}

func TestJoin_AscendPastRootErrors(t *testing.T) {
	owner, _ := Parse("a")
	rel, _ := Parse("::::toofar")
	_, err := Join(owner, rel)
	require.Error(t, err)
}

func TestJoinText(t *testing.T) {
	owner, _ := Parse("a::b")
	joined, err := JoinText(owner, "::sibling")
	require.NoError(t, err)
	assert.Equal(t, "a::sibling", joined.String())
}

func TestJoinText_AbsoluteIgnoresOwner(t *testing.T) {
	owner, _ := Parse("a::b")
	joined, err := JoinText(owner, "x::y")
	require.NoError(t, err)
	assert.Equal(t, "x::y", joined.String())
}

func TestIdentifier_Equal(t *testing.T) {
	a, _ := Parse("a::b::0")
	b, _ := Parse("a::b::0")
	c, _ := Parse("a::b::1")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestIdentifier_ParentChild(t *testing.T) {
	a, _ := Parse("a::b::c")
	assert.Equal(t, "a::b", a.Parent().String())
	child := a.Parent().Child(NewSegment("c"))
	assert.True(t, child.Equal(a))
}
