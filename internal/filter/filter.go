// Package filter implements the configurable input filter of spec §4.8: a
// rule list matched against every primary input event, each rule carrying
// activate/deactivate action lists.
package filter

// Condition matches a primary-screen input event and decides whether a
// rule's actions should run.
type Condition interface {
	// Match reports whether ev satisfies the condition, and whether the
	// event represents the "press"/activating edge (true) or the
	// "release"/deactivating edge (false).
	Match(ev Event) (matched bool, activating bool)
}

// EventKind tags the primary input events a filter rule can match.
type EventKind int

const (
	EventKeyPress EventKind = iota
	EventKeyRelease
	EventButtonPress
	EventButtonRelease
	EventServerConnected
)

// Event is one primary-screen input occurrence presented to the filter.
type Event struct {
	Kind       EventKind
	Key        uint16
	Button     uint8
	ModMask    uint16
	ScreenName string
}

// modifierCompareMask is ANDed into a mask before Keystroke/MouseButton
// comparisons so AltGr/CapsLock/NumLock/ScrollLock never affect a match
// (§4.8: MouseButton "ignoring AltGr/CapsLock/NumLock/ScrollLock"). It
// clears the AltGr bit (0x0008 in this module's modifier layout, see
// internal/config's modifier names) and every bit above the low byte.
const modifierCompareMask = 0x00F7

// KeystrokeCondition matches a hotkey press or release.
type KeystrokeCondition struct {
	Key     uint16
	ModMask uint16
}

func (c KeystrokeCondition) Match(ev Event) (bool, bool) {
	if ev.Kind != EventKeyPress && ev.Kind != EventKeyRelease {
		return false, false
	}
	if ev.Key != c.Key || ev.ModMask&modifierCompareMask != c.ModMask&modifierCompareMask {
		return false, false
	}
	return true, ev.Kind == EventKeyPress
}

// MouseButtonCondition matches a primary button press or release.
type MouseButtonCondition struct {
	Button  uint8
	ModMask uint16
}

func (c MouseButtonCondition) Match(ev Event) (bool, bool) {
	if ev.Kind != EventButtonPress && ev.Kind != EventButtonRelease {
		return false, false
	}
	if ev.Button != c.Button || ev.ModMask&modifierCompareMask != c.ModMask&modifierCompareMask {
		return false, false
	}
	return true, ev.Kind == EventButtonPress
}

// ScreenConnectedCondition matches a screen coming online; an empty Name
// matches any screen (§4.8).
type ScreenConnectedCondition struct {
	Name string
}

func (c ScreenConnectedCondition) Match(ev Event) (bool, bool) {
	if ev.Kind != EventServerConnected {
		return false, false
	}
	if c.Name != "" && ev.ScreenName != c.Name {
		return false, false
	}
	return true, true
}

// Action is an engine-level effect posted by a matched rule. Actions are
// dispatched immediately rather than queued, to preserve ordering with the
// triggering input (§4.8).
type Action interface {
	actionMarker()
}

type LockCursorMode int

const (
	LockOff LockCursorMode = iota
	LockOn
	LockToggle
)

// LockCursorToScreen pins or releases the cursor on the active screen.
type LockCursorToScreen struct{ Mode LockCursorMode }

// SwitchToScreen forces a switch to the named screen.
type SwitchToScreen struct{ Name string }

// ToggleScreen switches to the "other" screen in a two-screen setup, or is
// a no-op otherwise; resolution is left to the engine.
type ToggleScreen struct{}

// SwitchInDirection forces a switch to whatever neighbor lies in dir.
type SwitchInDirection struct{ Edge int }

// KeyboardBroadcast enables or disables broadcasting keyboard input to a
// set of screens.
type KeyboardBroadcast struct {
	On      bool
	Screens []string
}

// Keystroke synthesizes a key press/release on the named screens.
type Keystroke struct {
	Key     uint16
	ModMask uint16
	Screens []string
	Press   bool
}

// MouseButton synthesizes a button press/release on the active screen.
type MouseButton struct {
	Button uint8
	ModMask uint16
	Press   bool
}

func (LockCursorToScreen) actionMarker()  {}
func (SwitchToScreen) actionMarker()      {}
func (ToggleScreen) actionMarker()        {}
func (SwitchInDirection) actionMarker()   {}
func (KeyboardBroadcast) actionMarker()   {}
func (Keystroke) actionMarker()           {}
func (MouseButton) actionMarker()         {}

// Rule pairs a Condition with the actions to run on its activating and
// deactivating edges.
type Rule struct {
	Condition  Condition
	Activate   []Action
	Deactivate []Action
}

// Dispatcher receives actions as rules fire. The engine implements this to
// apply LockCursorToScreen, SwitchToScreen, etc. to live state.
type Dispatcher interface {
	Dispatch(Action)
}

// List is an ordered rule set evaluated against every primary input event,
// in configuration order (§4.8).
type List struct {
	Rules []Rule
}

// Handle evaluates ev against every rule in order, dispatching the matching
// rule's activate or deactivate actions to d.
func (l *List) Handle(ev Event, d Dispatcher) {
	for _, rule := range l.Rules {
		matched, activating := rule.Condition.Match(ev)
		if !matched {
			continue
		}
		actions := rule.Deactivate
		if activating {
			actions = rule.Activate
		}
		for _, a := range actions {
			d.Dispatch(a)
		}
	}
}
