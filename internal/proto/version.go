// Package proto defines the wire opcodes and message types of the
// server/client protocol (spec §6.2) on top of internal/wire's framing and
// codec primitives.
package proto

// Version is the protocol version (major, minor), compared lexicographically
// per §9's pinned resolution of the two comparison styles found in the
// original source.
type Version struct {
	Major uint16
	Minor uint16
}

// Current is the protocol version this implementation speaks.
var Current = Version{Major: 1, Minor: 6}

// Less reports whether v is strictly older than other, comparing major
// first, then minor (lexicographic order, §9).
func (v Version) Less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	return v.Minor < other.Minor
}

// Compatible reports whether peer is new enough to interoperate with mine:
// peer's major must not be lower than mine, and if the majors are equal
// peer's minor must not be lower than mine either (§4.3). The client calls
// this with mine=client version, peer=server version; the server mirrors
// the check with mine=server version, peer=client version.
func Compatible(mine, peer Version) bool {
	if peer.Major != mine.Major {
		return peer.Major > mine.Major
	}
	return peer.Minor >= mine.Minor
}
