// Package headless provides a PrimaryScreen/SecondaryScreen pair with no
// platform backing: every call logs the event it would have performed
// instead of touching real input devices or the OS clipboard. Spec §1
// treats the real X11/Win32/Quartz/libei drivers behind these interfaces
// as external collaborators this core does not implement; headless exists
// so cmd/barriernets and cmd/barriernetc have something concrete to wire
// while a real platform driver is plugged in, and so the engines can be
// exercised end-to-end (--debug runs, integration tests) without a
// display.
package headless

import (
	"sync"

	"github.com/barriernet/barriernet/internal/logging"
	"github.com/barriernet/barriernet/internal/screen"
	"github.com/barriernet/barriernet/pkg/screens"
)

var log = logging.L("headless")

// Primary is a screens.PrimaryScreen that never captures real input: its
// listener setters only store the listeners, and nothing in this package
// invokes them.
type Primary struct {
	mu    sync.Mutex
	shape screen.Shape

	motion  screens.MotionListener
	keys    screens.KeyListener
	buttons screens.ButtonListener
	clip    screens.ClipboardListener
	hotkeys screens.HotkeyListener

	nextHotkey screens.HotkeyID
	clipboard  map[uint8][]byte
}

// NewPrimary returns a headless Primary reporting shape as its screen
// rectangle.
func NewPrimary(shape screen.Shape) *Primary {
	return &Primary{shape: shape, clipboard: map[uint8][]byte{}}
}

func (p *Primary) Shape() screen.Shape { return p.shape }

func (p *Primary) Hide() error { log.Debug("hide primary cursor (headless no-op)"); return nil }
func (p *Primary) Show() error { log.Debug("show primary cursor (headless no-op)"); return nil }

func (p *Primary) WarpCursor(x, y int) error {
	log.Debug("warp cursor (headless no-op)", "x", x, "y", y)
	return nil
}

func (p *Primary) RegisterHotkey(key, mask uint16) (screens.HotkeyID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextHotkey++
	return p.nextHotkey, nil
}

func (p *Primary) UnregisterHotkey(id screens.HotkeyID) error { return nil }

func (p *Primary) LocalClipboard(id uint8) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clipboard[id], nil
}

func (p *Primary) SetClipboard(id uint8, blob []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clipboard[id] = blob
	return nil
}

func (p *Primary) SetMotionListener(l screens.MotionListener)       { p.motion = l }
func (p *Primary) SetKeyListener(l screens.KeyListener)             { p.keys = l }
func (p *Primary) SetButtonListener(l screens.ButtonListener)       { p.buttons = l }
func (p *Primary) SetClipboardListener(l screens.ClipboardListener) { p.clip = l }
func (p *Primary) SetHotkeyListener(l screens.HotkeyListener)       { p.hotkeys = l }

// Secondary is a screens.SecondaryScreen that logs every synthesized input
// call instead of applying it to a real desktop.
type Secondary struct {
	mu    sync.Mutex
	shape screen.Shape

	clipListen screens.ClipboardListener
	clipboard  map[uint8][]byte
}

// NewSecondary returns a headless Secondary reporting shape as its screen
// rectangle (the DINF this client sends on handshake).
func NewSecondary(shape screen.Shape) *Secondary {
	return &Secondary{shape: shape, clipboard: map[uint8][]byte{}}
}

func (s *Secondary) Shape() screen.Shape { return s.shape }

func (s *Secondary) EnterScreen(x, y int, toggleMask uint16) error {
	log.Debug("enter screen (headless no-op)", "x", x, "y", y, "toggleMask", toggleMask)
	return nil
}

func (s *Secondary) LeaveScreen() error {
	log.Debug("leave screen (headless no-op)")
	return nil
}

func (s *Secondary) MouseMove(x, y int) error {
	log.Debug("mouse move (headless no-op)", "x", x, "y", y)
	return nil
}

func (s *Secondary) MouseRelativeMove(dx, dy int) error {
	log.Debug("mouse relative move (headless no-op)", "dx", dx, "dy", dy)
	return nil
}

func (s *Secondary) MouseWheel(dx, dy int) error {
	log.Debug("mouse wheel (headless no-op)", "dx", dx, "dy", dy)
	return nil
}

func (s *Secondary) MouseButton(button uint8, down bool) error {
	log.Debug("mouse button (headless no-op)", "button", button, "down", down)
	return nil
}

func (s *Secondary) KeyEvent(key, mask, button uint16, down bool) error {
	log.Debug("key event (headless no-op)", "key", key, "mask", mask, "down", down)
	return nil
}

func (s *Secondary) KeyRepeat(key, mask, count, button uint16) error {
	log.Debug("key repeat (headless no-op)", "key", key, "count", count)
	return nil
}

func (s *Secondary) SetClipboard(id uint8, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clipboard[id] = blob
	return nil
}

func (s *Secondary) LocalClipboard(id uint8) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clipboard[id], nil
}

func (s *Secondary) SetClipboardListener(l screens.ClipboardListener) { s.clipListen = l }

func (s *Secondary) Screensaver(on bool) error {
	log.Debug("screensaver toggle (headless no-op)", "on", on)
	return nil
}
