package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceHasNoParents(t *testing.T) {
	g := New()
	src := g.MustNode(g.Source())
	assert.Empty(t, src.Parents)
}

func TestBaseIsDirectChildOfSource(t *testing.T) {
	g := New()
	base, err := g.AddBase("t", []string{"id", "v"}, NotSharded())
	require.NoError(t, err)
	require.Len(t, base.Parents, 1)
	assert.Equal(t, g.Source(), base.Parents[0])
}

func TestReaderSingleParentNoChildren(t *testing.T) {
	g := New()
	base, _ := g.AddBase("t", []string{"id", "v"}, NotSharded())
	reader, err := g.AddReader("q", base.Index, []int{0})
	require.NoError(t, err)
	assert.Len(t, reader.Parents, 1)
	assert.Empty(t, reader.Children)
}

func TestPlaceIsImmutableOnceSet(t *testing.T) {
	g := New()
	base, _ := g.AddBase("t", nil, NotSharded())
	require.NoError(t, g.Place(base.Index, 0, 0))
	err := g.Place(base.Index, 1, 1)
	assert.Error(t, err)
	n := g.MustNode(base.Index)
	assert.Equal(t, DomainIndex(0), n.Domain)
}

func TestRemoveRequiresNoChildren(t *testing.T) {
	g := New()
	base, _ := g.AddBase("t", nil, NotSharded())
	_, _ = g.AddReader("q", base.Index, []int{0})
	err := g.Remove(base.Index)
	assert.Error(t, err)
}

func TestRemoveOrphan(t *testing.T) {
	g := New()
	base, _ := g.AddBase("t", nil, NotSharded())
	reader, _ := g.AddReader("q", base.Index, []int{0})
	require.NoError(t, g.Remove(reader.Index))
	require.NoError(t, g.Remove(base.Index))
	assert.False(t, g.Contains(base.Index))
}

func TestCloneIsIndependent(t *testing.T) {
	g := New()
	base, _ := g.AddBase("t", []string{"id"}, NotSharded())
	clone := g.Clone()
	_, err := clone.AddReader("q", base.Index, []int{0})
	require.NoError(t, err)
	assert.Equal(t, 3, clone.Len())
	assert.Equal(t, 2, g.Len(), "original graph must be unaffected by clone mutation")
}

func TestNodesSortedByIndex(t *testing.T) {
	g := New()
	g.AddBase("a", nil, NotSharded())
	g.AddBase("b", nil, NotSharded())
	nodes := g.Nodes()
	for i := 1; i < len(nodes); i++ {
		assert.Less(t, nodes[i-1].Index, nodes[i].Index)
	}
}
