package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barriernet/barriernet/internal/screen"
)

func TestRegistryAddAndLookup(t *testing.T) {
	r := NewRegistry()
	c := &Connection{ID: newConnectionID()}

	r.Add(c)
	r.NameClaimed(c, screen.Name("left"))

	got, ok := r.ByID(c.ID)
	require.True(t, ok)
	require.Same(t, c, got)

	got, ok = r.ByName(screen.Name("left"))
	require.True(t, ok)
	require.Same(t, c, got)

	require.True(t, r.NameTaken(screen.Name("left")))
	require.False(t, r.NameTaken(screen.Name("right")))
	require.Equal(t, 1, r.Count())
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	c := &Connection{ID: newConnectionID()}
	r.Add(c)
	r.NameClaimed(c, screen.Name("left"))

	r.Remove(c)

	_, ok := r.ByID(c.ID)
	require.False(t, ok)
	_, ok = r.ByName(screen.Name("left"))
	require.False(t, ok)
	require.Equal(t, 0, r.Count())
}

func TestRegistryNameClaimedReplacesPriorHolder(t *testing.T) {
	r := NewRegistry()
	first := &Connection{ID: newConnectionID()}
	second := &Connection{ID: newConnectionID()}

	r.Add(first)
	r.NameClaimed(first, screen.Name("left"))
	r.Add(second)
	r.NameClaimed(second, screen.Name("left"))

	got, ok := r.ByName(screen.Name("left"))
	require.True(t, ok)
	require.Same(t, second, got)

	// Removing the stale first connection must not evict second's claim:
	// Remove only clears byName when the map still points at that exact
	// connection.
	r.Remove(first)
	got, ok = r.ByName(screen.Name("left"))
	require.True(t, ok)
	require.Same(t, second, got)
}

func TestRegistryAll(t *testing.T) {
	r := NewRegistry()
	a := &Connection{ID: newConnectionID()}
	b := &Connection{ID: newConnectionID()}
	r.Add(a)
	r.Add(b)

	require.ElementsMatch(t, []*Connection{a, b}, r.All())
}
