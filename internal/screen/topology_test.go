package screen

import (
	"testing"

	"github.com/barriernet/barriernet/internal/proto"
	"github.com/stretchr/testify/require"
)

func buildTwoScreenTopology(t *testing.T) *Topology {
	t.Helper()
	topo := NewTopology()
	topo.AddScreen(NewScreen(Name("left")))
	topo.AddScreen(NewScreen(Name("right")))
	require.NoError(t, topo.AddLink(Name("left"), proto.EdgeRight, 0, 1, Name("right")))
	require.NoError(t, topo.AddLink(Name("right"), proto.EdgeLeft, 0, 1, Name("left")))
	return topo
}

func TestLinkAtFindsCoveringInterval(t *testing.T) {
	topo := buildTwoScreenTopology(t)
	link, ok := topo.LinkAt(Name("left"), proto.EdgeRight, 0.5)
	require.True(t, ok)
	require.Equal(t, Name("right"), link.Neighbor)
}

func TestLinkAtReportsNoNeighborOnUndeclaredEdge(t *testing.T) {
	topo := buildTwoScreenTopology(t)
	_, ok := topo.LinkAt(Name("left"), proto.EdgeTop, 0.5)
	require.False(t, ok)
}

func TestAddLinkRejectsOverlap(t *testing.T) {
	topo := NewTopology()
	topo.AddScreen(NewScreen(Name("a")))
	require.NoError(t, topo.AddLink(Name("a"), proto.EdgeRight, 0, 0.6, Name("b")))
	err := topo.AddLink(Name("a"), proto.EdgeRight, 0.5, 1.0, Name("c"))
	require.Error(t, err)
}

func TestAddLinkAllowsAdjacentPartition(t *testing.T) {
	topo := NewTopology()
	topo.AddScreen(NewScreen(Name("a")))
	require.NoError(t, topo.AddLink(Name("a"), proto.EdgeRight, 0, 0.5, Name("b")))
	require.NoError(t, topo.AddLink(Name("a"), proto.EdgeRight, 0.5, 1.0, Name("c")))

	link, ok := topo.LinkAt(Name("a"), proto.EdgeRight, 0.75)
	require.True(t, ok)
	require.Equal(t, Name("c"), link.Neighbor)
}

func TestAddLinkRejectsOutOfRangeInterval(t *testing.T) {
	topo := NewTopology()
	topo.AddScreen(NewScreen(Name("a")))
	require.Error(t, topo.AddLink(Name("a"), proto.EdgeRight, -0.1, 0.5, Name("b")))
	require.Error(t, topo.AddLink(Name("a"), proto.EdgeRight, 0.5, 1.1, Name("b")))
	require.Error(t, topo.AddLink(Name("a"), proto.EdgeRight, 0.6, 0.5, Name("b")))
}

func TestResolveFollowsAliases(t *testing.T) {
	topo := NewTopology()
	s := NewScreen(Name("office-left"))
	s.Aliases = []Name{Name("laptop")}
	topo.AddScreen(s)

	resolved, ok := topo.Resolve("LAPTOP")
	require.True(t, ok)
	require.Equal(t, Name("office-left"), resolved.Name)
}
