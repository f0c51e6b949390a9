// Package switching implements the server-side screen-switching engine of
// spec §4.6: jump-zone detection, neighbor resolution across holes in the
// topology partition, and the policies that may suppress or delay a
// switch.
package switching

import (
	"github.com/barriernet/barriernet/internal/proto"
	"github.com/barriernet/barriernet/internal/screen"
)

// EdgeHit reports that position (x, y) lies within a screen's jump zone on
// one edge.
type EdgeHit struct {
	Edge proto.Edge
	Frac float64 // fractional position along the edge, axis orthogonal to Edge
}

// DetectZone reports whether (x, y) lies within zoneWidth pixels of one of
// shape's edges, and if so which edge and the fractional position along
// it (§4.6 "Jump zone test"). A cursor in a corner matches whichever edge
// it is closer to; ties favor the left/right edge over the top/bottom edge.
func DetectZone(shape screen.Shape, zoneWidth, x, y int) (EdgeHit, bool) {
	if zoneWidth <= 0 {
		return EdgeHit{}, false
	}

	left := x - shape.X
	right := shape.X + shape.W - 1 - x
	top := y - shape.Y
	bottom := shape.Y + shape.H - 1 - y

	type candidate struct {
		edge proto.Edge
		dist int
		frac float64
	}
	var hits []candidate
	if left < zoneWidth {
		hits = append(hits, candidate{proto.EdgeLeft, left, fracAlong(y, shape.Y, shape.H)})
	}
	if right < zoneWidth {
		hits = append(hits, candidate{proto.EdgeRight, right, fracAlong(y, shape.Y, shape.H)})
	}
	if top < zoneWidth {
		hits = append(hits, candidate{proto.EdgeTop, top, fracAlong(x, shape.X, shape.W)})
	}
	if bottom < zoneWidth {
		hits = append(hits, candidate{proto.EdgeBottom, bottom, fracAlong(x, shape.X, shape.W)})
	}
	if len(hits) == 0 {
		return EdgeHit{}, false
	}

	best := hits[0]
	for _, h := range hits[1:] {
		if h.dist < best.dist {
			best = h
		}
	}
	return EdgeHit{Edge: best.edge, Frac: best.frac}, true
}

func fracAlong(pos, origin, length int) float64 {
	if length <= 1 {
		return 0
	}
	f := float64(pos-origin) / float64(length-1)
	if f < 0 {
		f = 0
	}
	if f >= 1 {
		f = 0.999999
	}
	return f
}

// maxWalkHops bounds the "walk past empty neighbors" search of §4.6 so a
// topology with only holes on an edge terminates instead of looping.
const maxWalkHops = 32

// Destination is a resolved neighbor: the screen to enter and the entry
// point in its local pixel space.
type Destination struct {
	Screen screen.Name
	X, Y   int
}

// ResolveNeighbor walks topo starting from (from, edge, frac), skipping
// over holes in the partition, until it finds a declared neighbor or
// exhausts the edge (§4.6 "Neighbor resolution"). It does not check
// whether that neighbor is connected. zoneWidth is used to nudge the
// entry point away from the destination's own further jump zones so the
// cursor does not immediately re-trigger a switch.
func ResolveNeighbor(topo *screen.Topology, from screen.Name, edge proto.Edge, frac float64, zoneWidth int) (Destination, bool) {
	cur := frac
	for hop := 0; hop < maxWalkHops; hop++ {
		link, ok := topo.LinkAt(from, edge, cur)
		if !ok {
			return Destination{}, false
		}
		if link.Neighbor != "" {
			dest, ok := topo.Screen(link.Neighbor)
			if !ok {
				return Destination{}, false
			}
			return destinationPoint(dest, edge, cur, zoneWidth), true
		}
		// Hole: keep walking past it rather than stopping here (§4.6).
		cur = link.End
		if cur >= 1 {
			return Destination{}, false
		}
	}
	return Destination{}, false
}

// destinationPoint maps frac (a fraction along the source edge) onto the
// opposite edge of dest's shape, clamping the orthogonal axis away from
// dest's own further jump zones by zoneWidth pixels.
func destinationPoint(dest *screen.Screen, enteredEdge proto.Edge, frac float64, zoneWidth int) Destination {
	shape := dest.Shape
	var x, y int

	switch enteredEdge {
	case proto.EdgeRight: // arriving from the left into dest's left edge
		x = shape.X + zoneWidth
		y = shape.Y + int(frac*float64(shape.H-1))
	case proto.EdgeLeft: // arriving from the right into dest's right edge
		x = shape.X + shape.W - 1 - zoneWidth
		y = shape.Y + int(frac*float64(shape.H-1))
	case proto.EdgeBottom: // arriving from the top into dest's top edge
		y = shape.Y + zoneWidth
		x = shape.X + int(frac*float64(shape.W-1))
	case proto.EdgeTop: // arriving from the bottom into dest's bottom edge
		y = shape.Y + shape.H - 1 - zoneWidth
		x = shape.X + int(frac*float64(shape.W-1))
	}

	x = clamp(x, shape.X, shape.X+shape.W-1)
	y = clamp(y, shape.Y, shape.Y+shape.H-1)
	return Destination{Screen: dest.Name, X: x, Y: y}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
