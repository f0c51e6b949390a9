package screen

import (
	"fmt"
	"sort"

	"github.com/barriernet/barriernet/internal/proto"
)

// Link is one neighbor entry on an edge: the destination screen (or ""
// for an explicit hole in the partition) covering the half-open fractional
// interval [Start, End) along that edge (§3 Topology).
type Link struct {
	Start, End float64
	Neighbor   Name // empty means "no screen here" (cursor clamps or walks past, §4.6)
}

// Topology is the neighbor graph declared by config: screens plus, per
// (screen, edge), an ordered set of disjoint links partitioning [0, 1].
type Topology struct {
	screens map[Name]*Screen
	aliases map[Name]Name
	links   map[Name]map[proto.Edge][]Link
}

// NewTopology creates an empty topology.
func NewTopology() *Topology {
	return &Topology{
		screens: make(map[Name]*Screen),
		aliases: make(map[Name]Name),
		links:   make(map[Name]map[proto.Edge][]Link),
	}
}

// AddScreen declares a screen, keyed by its canonical name plus any
// aliases.
func (t *Topology) AddScreen(s *Screen) {
	t.screens[s.Name] = s
	for _, a := range s.Aliases {
		t.aliases[a] = s.Name
	}
}

// Resolve maps a raw (possibly aliased) name to its canonical Screen.
func (t *Topology) Resolve(raw string) (*Screen, bool) {
	n := Canonical(raw)
	if canon, ok := t.aliases[n]; ok {
		n = canon
	}
	s, ok := t.screens[n]
	return s, ok
}

// Screen looks up a screen by its already-canonical name.
func (t *Topology) Screen(name Name) (*Screen, bool) {
	s, ok := t.screens[name]
	return s, ok
}

// Screens returns every declared screen, for iteration (e.g. a config
// reload diff).
func (t *Topology) Screens() []*Screen {
	out := make([]*Screen, 0, len(t.screens))
	for _, s := range t.screens {
		out = append(out, s)
	}
	return out
}

// AddLink declares a neighbor of from on edge, covering [start, end). It
// returns an error if the interval is out of [0,1], empty, or overlaps an
// existing link on the same (screen, edge) — the topology invariant of §3
// ("intervals on each edge are disjoint and lie within [0,1]").
func (t *Topology) AddLink(from Name, edge proto.Edge, start, end float64, to Name) error {
	if start < 0 || end > 1 || start >= end {
		return fmt.Errorf("screen %s: invalid interval [%v,%v) on %s edge", from, start, end, edge)
	}
	if _, ok := t.screens[from]; !ok {
		return fmt.Errorf("screen %s: not declared", from)
	}

	existing := t.links[from][edge]
	idx := sort.Search(len(existing), func(i int) bool { return existing[i].Start >= start })
	if idx > 0 && existing[idx-1].End > start {
		return fmt.Errorf("screen %s: interval [%v,%v) on %s edge overlaps [%v,%v)",
			from, start, end, edge, existing[idx-1].Start, existing[idx-1].End)
	}
	if idx < len(existing) && existing[idx].Start < end {
		return fmt.Errorf("screen %s: interval [%v,%v) on %s edge overlaps [%v,%v)",
			from, start, end, edge, existing[idx].Start, existing[idx].End)
	}

	link := Link{Start: start, End: end, Neighbor: to}
	merged := make([]Link, 0, len(existing)+1)
	merged = append(merged, existing[:idx]...)
	merged = append(merged, link)
	merged = append(merged, existing[idx:]...)

	if t.links[from] == nil {
		t.links[from] = make(map[proto.Edge][]Link)
	}
	t.links[from][edge] = merged
	return nil
}

// LinkAt returns the link on from's edge covering fractional position frac,
// and whether one was found. An edge with no matching link (a gap, or no
// links declared at all) returns ok=false so the caller can clamp (§3:
// "edges without any entry have no neighbor").
func (t *Topology) LinkAt(from Name, edge proto.Edge, frac float64) (Link, bool) {
	links := t.links[from][edge]
	for _, l := range links {
		if frac >= l.Start && frac < l.End {
			return l, true
		}
	}
	return Link{}, false
}
