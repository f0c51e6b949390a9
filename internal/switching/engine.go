package switching

import (
	"time"

	"github.com/barriernet/barriernet/internal/logging"
	"github.com/barriernet/barriernet/internal/proto"
	"github.com/barriernet/barriernet/internal/reactor"
	"github.com/barriernet/barriernet/internal/screen"
)

var log = logging.L("switching")

// Policies configures the switch-suppressing rules of §4.6.
type Policies struct {
	// SwitchDelay: on first zone entry, wait this long before switching,
	// consuming further motion in the meantime (0 disables the delay).
	SwitchDelay time.Duration
	// TwoTap requires two zone entries within this window, separated by an
	// exit back past the zone, before a switch happens (0 disables it).
	TwoTap time.Duration
	// CornerSize masks the four corners of a screen from switching when
	// non-zero.
	CornerSize int
	// RequireModifiers, if non-zero, must be fully held (as a bitmask) for
	// any switch to be considered.
	RequireModifiers uint16
}

// Primary is the callback surface the engine drives to actually execute a
// switch (§4.6 "Switch execution"): leave the departing connection, update
// clipboards, advance the sequence, enter the new one.
type Primary interface {
	// Leave is called on the departing screen's connection before Enter.
	Leave(from screen.Name)
	// Enter is called on the arriving screen's connection with the
	// resolved destination and the new enter sequence number.
	Enter(to screen.Name, x, y int, seq uint32, toggleMask uint16, saver bool)
}

// Engine is the server-side switching state machine. It owns exactly one
// "active screen pointer" (§3) and every policy that may suppress or delay
// a switch. It is driven from the reactor goroutine and is not safe for
// concurrent use.
type Engine struct {
	topo     *screen.Topology
	policies Policies
	primary  Primary
	rx       *reactor.Reactor

	active      screen.Name
	seq         uint32
	lockedToScreen bool // scroll-lock pin (§4.6 "Scroll-lock lock")
	relativeMode   bool
	modMask        uint16 // currently held modifiers, as reported by the primary

	pendingEdge  proto.Edge
	pendingTimer reactor.TimerID
	pendingSet   bool

	lastTapEdge    proto.Edge
	lastTapAt      time.Time
	lastTapSet     bool
	exitedSinceTap bool

	savedScreen screen.Name
	savedX      int
	savedY      int
	inScreensaver bool
}

// NewEngine creates a switching engine rooted at the given primary screen.
func NewEngine(topo *screen.Topology, policies Policies, primary Primary, rx *reactor.Reactor, initialActive screen.Name) *Engine {
	return &Engine{
		topo:     topo,
		policies: policies,
		primary:  primary,
		rx:       rx,
		active:   initialActive,
	}
}

// Active returns the currently active screen.
func (e *Engine) Active() screen.Name {
	return e.active
}

// SetPolicies replaces the switching policies in effect, e.g. after a live
// reload of the screens config file. Must be called on the reactor
// goroutine, same as every other Engine method.
func (e *Engine) SetPolicies(p Policies) {
	e.policies = p
}

// LockedToScreen reports whether the cursor is currently pinned (scroll-lock).
func (e *Engine) LockedToScreen() bool {
	return e.lockedToScreen
}

// SetLockedToScreen sets or clears the scroll-lock pin.
func (e *Engine) SetLockedToScreen(on bool) {
	e.lockedToScreen = on
	if on && e.pendingSet {
		e.cancelPending()
	}
}

// SetModifiers records the primary's currently held modifier mask, used by
// the RequireModifiers policy.
func (e *Engine) SetModifiers(mask uint16) {
	e.modMask = mask
}

// ModMask returns the primary's currently held modifier mask.
func (e *Engine) ModMask() uint16 {
	return e.modMask
}

// InScreensaver reports whether a screensaver-forced transition is active.
func (e *Engine) InScreensaver() bool {
	return e.inScreensaver
}

// SavedScreen returns the screen that was active when EnterScreensaver was
// called, valid only while InScreensaver is true.
func (e *Engine) SavedScreen() screen.Name {
	return e.savedScreen
}

// SwitchTo forces an immediate switch to name regardless of topology
// adjacency, entering at the destination's current center. Used by
// filter-driven actions (§4.8 SwitchToScreen) rather than jump-zone
// detection.
func (e *Engine) SwitchTo(name screen.Name) bool {
	if name == e.active {
		return false
	}
	dest, ok := e.topo.Screen(name)
	if !ok {
		return false
	}
	shape := dest.Shape
	e.switchTo(Destination{Screen: name, X: shape.X + shape.W/2, Y: shape.Y + shape.H/2}, 0, false)
	return true
}

// ToggleScreen switches to the other screen in a two-screen topology
// (§4.8 ToggleScreen); a no-op if the topology has any other shape.
func (e *Engine) ToggleScreen() bool {
	all := e.topo.Screens()
	if len(all) != 2 {
		return false
	}
	other := all[0].Name
	if other == e.active {
		other = all[1].Name
	}
	return e.SwitchTo(other)
}

// SwitchInDirection forces a switch to whatever neighbor lies on edge from
// the active screen's midpoint (§4.8 SwitchInDirection).
func (e *Engine) SwitchInDirection(edge proto.Edge, zoneWidth int) bool {
	dest, ok := ResolveNeighbor(e.topo, e.active, edge, 0.5, zoneWidth)
	if !ok {
		return false
	}
	e.switchTo(dest, 0, false)
	return true
}

// RelativeMode reports whether the engine is forwarding deltas instead of
// absolute positions (§4.6 "Relative motion mode").
func (e *Engine) RelativeMode() bool {
	return e.relativeMode
}

// SetRelativeMode toggles relative-motion forwarding; the server sets this
// once a secondary screen is both active and locked to, per §4.6.
func (e *Engine) SetRelativeMode(on bool) {
	e.relativeMode = on
}

// HandlePrimaryMotion is the entry point for every primary-screen motion
// event. It runs jump-zone detection and, subject to policy, executes a
// switch. Like the rest of Engine, it must only be called from the
// reactor goroutine that owns it, since it may arm or cancel timers.
func (e *Engine) HandlePrimaryMotion(activeShape screen.Shape, zoneWidth, x, y int) {
	if e.lockedToScreen || e.inScreensaver {
		return // §8 "switch idempotence on locked screen"; screensaver transitions suppress ordinary switches too
	}

	hit, inZone := DetectZone(activeShape, zoneWidth, x, y)
	if !inZone {
		if e.pendingSet {
			e.cancelPending()
		}
		if e.lastTapSet {
			e.exitedSinceTap = true
		}
		return
	}

	if e.policies.CornerSize > 0 && inLockedCorner(activeShape, e.policies.CornerSize, x, y) {
		return
	}
	if e.policies.RequireModifiers != 0 && e.modMask&e.policies.RequireModifiers != e.policies.RequireModifiers {
		return
	}

	if e.policies.TwoTap > 0 && !e.passesTwoTap(hit.Edge) {
		return
	}

	if e.policies.SwitchDelay > 0 {
		e.armSwitchDelay(hit, zoneWidth)
		return
	}

	e.executeSwitch(hit, zoneWidth)
}

// passesTwoTap implements the two-tap guard (§4.6), with the supplemented
// requirement that the intervening exit be observed before the second tap
// counts (otherwise a cursor merely jittering at the edge would satisfy
// "two entries" without ever truly leaving).
func (e *Engine) passesTwoTap(edge proto.Edge) bool {
	now := time.Now()
	defer func() {
		e.lastTapEdge = edge
		e.lastTapAt = now
		e.lastTapSet = true
		e.exitedSinceTap = false
	}()

	if !e.lastTapSet || e.lastTapEdge != edge {
		return false
	}
	if now.Sub(e.lastTapAt) > e.policies.TwoTap {
		return false
	}
	return e.exitedSinceTap
}

func (e *Engine) armSwitchDelay(hit EdgeHit, zoneWidth int) {
	if e.pendingSet && e.pendingEdge == hit.Edge {
		return // already waiting on this zone
	}
	if e.pendingSet {
		e.cancelPending()
	}
	e.pendingEdge = hit.Edge
	e.pendingSet = true
	e.pendingTimer = e.rx.Schedule(e.policies.SwitchDelay, func() {
		e.pendingSet = false
		e.executeSwitch(hit, zoneWidth)
	})
}

func (e *Engine) cancelPending() {
	e.rx.Cancel(e.pendingTimer)
	e.pendingSet = false
}

func (e *Engine) executeSwitch(hit EdgeHit, zoneWidth int) {
	dest, ok := ResolveNeighbor(e.topo, e.active, hit.Edge, hit.Frac, zoneWidth)
	if !ok {
		return
	}
	e.switchTo(dest, 0, false)
}

// switchTo performs the full switch-execution sequence of §4.6: Leave,
// advance sequence, Enter with the toggle mask and optional screensaver
// flag.
func (e *Engine) switchTo(dest Destination, toggleMask uint16, saver bool) {
	from := e.active
	e.primary.Leave(from)

	e.seq++
	e.active = dest.Screen
	e.primary.Enter(dest.Screen, dest.X, dest.Y, e.seq, toggleMask, saver)

	log.Info("screen switch", "from", from, "to", dest.Screen, "seq", e.seq)
}

func inLockedCorner(shape screen.Shape, size, x, y int) bool {
	left := x-shape.X < size
	right := shape.X+shape.W-1-x < size
	top := y-shape.Y < size
	bottom := shape.Y+shape.H-1-y < size
	return (left || right) && (top || bottom)
}

// EnterScreensaver forces a switch to primary and remembers the prior
// screen/position so deactivation can restore it (§4.6 "Screensaver
// transitions").
func (e *Engine) EnterScreensaver(primaryName screen.Name, primaryX, primaryY int) {
	if e.inScreensaver {
		return
	}
	e.inScreensaver = true
	e.savedScreen = e.active
	e.savedX = primaryX
	e.savedY = primaryY

	if e.active != primaryName {
		e.switchTo(Destination{Screen: primaryName, X: 0, Y: 0}, 0, true)
	}
}

// ExitScreensaver restores the screen/position saved on entry, clamped to
// that screen's current shape (which may have changed while the
// screensaver was active).
func (e *Engine) ExitScreensaver(savedScreenShape screen.Shape) {
	if !e.inScreensaver {
		return
	}
	e.inScreensaver = false

	x := clamp(e.savedX, savedScreenShape.X, savedScreenShape.X+savedScreenShape.W-1)
	y := clamp(e.savedY, savedScreenShape.Y, savedScreenShape.Y+savedScreenShape.H-1)

	if e.savedScreen != e.active {
		e.switchTo(Destination{Screen: e.savedScreen, X: x, Y: y}, 0, false)
	}
}
