// Package screens declares the capability interfaces the core input-sharing
// engine is built against for local input capture and synthesis. Spec §1
// treats the platform drivers behind these interfaces (X11, Win32, macOS
// Quartz, libei/Wayland) as external collaborators: this package describes
// only the shapes the engine depends on, not any concrete implementation.
package screens

import "github.com/barriernet/barriernet/internal/screen"

// MotionListener receives primary-screen cursor motion in server pixel
// space, the input the server's switching engine drives on (spec §4.6).
type MotionListener interface {
	OnMotion(x, y int)
}

// KeyListener receives primary-screen key and modifier events.
type KeyListener interface {
	OnKeyDown(key, mask, button uint16)
	OnKeyUp(key, mask, button uint16)
	OnKeyRepeat(key, mask, count, button uint16)
}

// ButtonListener receives primary-screen mouse button and wheel events.
type ButtonListener interface {
	OnButtonDown(button uint8)
	OnButtonUp(button uint8)
	OnWheel(dx, dy int16)
}

// ClipboardListener is notified when the local OS clipboard changes owner,
// so the caller can propagate a grab (§4.7).
type ClipboardListener interface {
	OnClipboardGrabbed(id uint8)
}

// HotkeyListener receives press/release notifications for hotkeys
// registered via PrimaryScreen.RegisterHotkey, correlated by the HotkeyID
// returned at registration time (§4.8 "Hotkey actions"). These arrive on a
// channel distinct from KeyListener: a registered hotkey is consumed by the
// OS before it would otherwise reach OnKeyDown/OnKeyUp.
type HotkeyListener interface {
	OnHotkey(id HotkeyID, down bool)
}

// PrimaryScreen is the capability set of the machine that owns the
// physical keyboard and mouse (spec's "Primary screen", §1, §4.6, §4.8).
// The server engine drives switches by calling Hide/Show and reading
// shape/cursor state; it never synthesizes input on the primary.
type PrimaryScreen interface {
	// Shape returns the primary's own screen rectangle in its local pixel
	// space.
	Shape() screen.Shape

	// Hide is called when a switch departs the primary, so the platform
	// driver can hide the OS cursor and start capturing raw input instead
	// of letting it reach the desktop (§4.6 relative motion mode).
	Hide() error
	// Show is called when a switch returns control to the primary.
	Show() error

	// WarpCursor moves the OS cursor to (x, y) in the primary's pixel
	// space; the server calls it when a switch returns control to the
	// primary, to place the cursor at the entry point.
	WarpCursor(x, y int) error

	// RegisterHotkey installs an OS-level hotkey for (key, mask) and
	// returns an opaque, OS-assigned HotkeyID the filter uses to
	// correlate future press/release notifications (§3 "Hotkey
	// registration", §4.8).
	RegisterHotkey(key, mask uint16) (HotkeyID, error)
	// UnregisterHotkey removes a previously registered hotkey.
	UnregisterHotkey(id HotkeyID) error

	// LocalClipboard reads the current content of clipboard slot id in
	// the marshalled wire format (§4.7).
	LocalClipboard(id uint8) ([]byte, error)
	// SetClipboard applies an incoming clipboard blob grabbed by a remote
	// screen to the primary's own OS clipboard, so focus returning to the
	// primary sees the fleet's current content (§4.7).
	SetClipboard(id uint8, blob []byte) error

	// SetMotionListener installs the callback invoked on every primary
	// cursor motion event, in capture order (§5 "Ordering guarantees").
	SetMotionListener(MotionListener)
	// SetKeyListener installs the callback invoked on every primary key
	// event.
	SetKeyListener(KeyListener)
	// SetButtonListener installs the callback invoked on every primary
	// button/wheel event.
	SetButtonListener(ButtonListener)
	// SetClipboardListener installs the callback invoked when the local
	// clipboard is grabbed by another application.
	SetClipboardListener(ClipboardListener)
	// SetHotkeyListener installs the callback invoked when a hotkey
	// registered via RegisterHotkey is pressed or released.
	SetHotkeyListener(HotkeyListener)
}

// HotkeyID is an opaque, OS-assigned identifier for a registered hotkey
// (spec §3).
type HotkeyID uint32

// SecondaryScreen is the capability set of a client machine receiving
// synthesized input (spec's "Secondary screen", §1). The client engine
// calls these in direct response to parsed wire messages.
type SecondaryScreen interface {
	// Shape returns the secondary's own screen rectangle, reported to the
	// server as DINF on connect (§4.3).
	Shape() screen.Shape

	// EnterScreen is called on CENTER: the cursor is about to appear at
	// (x, y), carrying the toggle-modifier mask the server observed.
	EnterScreen(x, y int, toggleMask uint16) error
	// LeaveScreen is called on CLEAVE: synthesized input should stop
	// until the next EnterScreen.
	LeaveScreen() error

	// MouseMove applies an absolute DMMV position.
	MouseMove(x, y int) error
	// MouseRelativeMove applies a relative DMRM delta (§4.6 relative
	// motion mode).
	MouseRelativeMove(dx, dy int) error
	// MouseWheel applies a DMWM scroll delta.
	MouseWheel(dx, dy int) error
	// MouseButton applies a DMDN/DMUP button edge.
	MouseButton(button uint8, down bool) error

	// KeyEvent applies a DKDN/DKUP key edge, after modifier translation
	// (§4.5) has already been applied by the caller.
	KeyEvent(key, mask, button uint16, down bool) error
	// KeyRepeat applies a DKRP repeat.
	KeyRepeat(key, mask, count, button uint16) error

	// SetClipboard applies an incoming, reassembled clipboard blob to the
	// local OS clipboard (§4.7).
	SetClipboard(id uint8, blob []byte) error
	// LocalClipboard reads the current local clipboard content, used when
	// this screen grabs the clipboard itself and must relay it to the
	// server.
	LocalClipboard(id uint8) ([]byte, error)
	// SetClipboardListener installs the callback invoked when this
	// screen's local clipboard changes owner.
	SetClipboardListener(ClipboardListener)

	// Screensaver is called on CSEC to start or stop the local
	// screensaver in lockstep with the fleet (§4.6 "Screensaver
	// transitions").
	Screensaver(on bool) error
}
