package switching

import (
	"testing"

	"github.com/barriernet/barriernet/internal/proto"
	"github.com/barriernet/barriernet/internal/screen"
	"github.com/stretchr/testify/require"
)

func TestDetectZoneFindsRightEdge(t *testing.T) {
	shape := screen.Shape{X: 0, Y: 0, W: 1920, H: 1080}
	hit, ok := DetectZone(shape, 2, 1919, 540)
	require.True(t, ok)
	require.Equal(t, proto.EdgeRight, hit.Edge)
	require.InDelta(t, 0.5, hit.Frac, 0.01)
}

func TestDetectZoneMissesInterior(t *testing.T) {
	shape := screen.Shape{X: 0, Y: 0, W: 1920, H: 1080}
	_, ok := DetectZone(shape, 2, 960, 540)
	require.False(t, ok)
}

func TestResolveNeighborSimpleAdjacency(t *testing.T) {
	topo := screen.NewTopology()
	topo.AddScreen(screen.NewScreen(screen.Name("left")))
	right := screen.NewScreen(screen.Name("right"))
	right.Connect(screen.Shape{X: 0, Y: 0, W: 1024, H: 768})
	topo.AddScreen(right)
	require.NoError(t, topo.AddLink(screen.Name("left"), proto.EdgeRight, 0, 1, screen.Name("right")))

	dest, ok := ResolveNeighbor(topo, screen.Name("left"), proto.EdgeRight, 0.5, 2)
	require.True(t, ok)
	require.Equal(t, screen.Name("right"), dest.Screen)
	require.Equal(t, 2, dest.X)
	require.InDelta(t, 383, dest.Y, 2)
}

func TestResolveNeighborWalksPastHole(t *testing.T) {
	topo := screen.NewTopology()
	topo.AddScreen(screen.NewScreen(screen.Name("left")))
	far := screen.NewScreen(screen.Name("far"))
	far.Connect(screen.Shape{X: 0, Y: 0, W: 800, H: 600})
	topo.AddScreen(far)

	// A hole from 0 to 0.5 (empty neighbor), live neighbor from 0.5 to 1.
	require.NoError(t, topo.AddLink(screen.Name("left"), proto.EdgeRight, 0, 0.5, screen.Name("")))
	require.NoError(t, topo.AddLink(screen.Name("left"), proto.EdgeRight, 0.5, 1, screen.Name("far")))

	dest, ok := ResolveNeighbor(topo, screen.Name("left"), proto.EdgeRight, 0.25, 2)
	require.True(t, ok)
	require.Equal(t, screen.Name("far"), dest.Screen)
}

func TestResolveNeighborNoNeighborClamps(t *testing.T) {
	topo := screen.NewTopology()
	topo.AddScreen(screen.NewScreen(screen.Name("left")))
	_, ok := ResolveNeighbor(topo, screen.Name("left"), proto.EdgeRight, 0.5, 2)
	require.False(t, ok)
}
