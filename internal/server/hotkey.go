package server

import (
	"github.com/barriernet/barriernet/internal/filter"
	"github.com/barriernet/barriernet/internal/proto"
	"github.com/barriernet/barriernet/internal/screen"
	"github.com/barriernet/barriernet/pkg/screens"
)

// registerHotkeys installs every KeystrokeCondition rule in s.filters as an
// OS-level hotkey (§4.8). Only KeystrokeCondition rules come out of
// config.BuildFilterList today; MouseButtonCondition and
// ScreenConnectedCondition rules exist in internal/filter for a future
// config form but have no producer yet, so they are skipped here rather
// than silently matched against the wrong channel.
func (s *Server) registerHotkeys() {
	for _, rule := range s.filters.Rules {
		kc, ok := rule.Condition.(filter.KeystrokeCondition)
		if !ok {
			log.Warn("skipping filter rule with no hotkey producer", "condition", rule.Condition)
			continue
		}
		id, err := s.primary.RegisterHotkey(kc.Key, kc.ModMask)
		if err != nil {
			log.Warn("register hotkey failed", "key", kc.Key, "mask", kc.ModMask, "error", err)
			continue
		}
		s.hotkeys[id] = rule
	}
}

// OnHotkey implements screens.HotkeyListener.
func (s *Server) OnHotkey(id screens.HotkeyID, down bool) {
	s.rx.Post(primaryHotkeyEvent{id: id, down: down})
}

func (s *Server) onHotkey(id screens.HotkeyID, down bool) {
	rule, ok := s.hotkeys[id]
	if !ok {
		return
	}
	actions := rule.Deactivate
	if down {
		actions = rule.Activate
	}
	for _, a := range actions {
		s.Dispatch(a)
	}
}

// Dispatch implements filter.Dispatcher, applying one matched rule action to
// live engine state (§4.8).
func (s *Server) Dispatch(action filter.Action) {
	switch a := action.(type) {
	case filter.LockCursorToScreen:
		switch a.Mode {
		case filter.LockOn:
			s.engine.SetLockedToScreen(true)
		case filter.LockOff:
			s.engine.SetLockedToScreen(false)
		case filter.LockToggle:
			s.engine.SetLockedToScreen(!s.engine.LockedToScreen())
		}

	case filter.SwitchToScreen:
		s.engine.SwitchTo(screen.Name(a.Name))

	case filter.ToggleScreen:
		s.engine.ToggleScreen()

	case filter.SwitchInDirection:
		s.engine.SwitchInDirection(proto.Edge(a.Edge), s.zoneWidthFor(s.engine.Active()))

	case filter.KeyboardBroadcast:
		// Not implemented: broadcasting primary input to more than one
		// screen at once would violate the engine's single-active-screen
		// invariant (§3). Logged rather than silently dropped.
		log.Warn("keyboardBroadcast action ignored, unsupported by this engine")

	case filter.Keystroke:
		s.synthesizeKeystroke(a)

	case filter.MouseButton:
		s.synthesizeMouseButton(a)

	default:
		log.Warn("unhandled filter action type")
	}
}

func (s *Server) synthesizeKeystroke(a filter.Keystroke) {
	for _, name := range a.Screens {
		conn, ok := s.registry.ByName(screen.Name(name))
		if !ok {
			continue
		}
		_ = conn.Send(proto.Key{Down: a.Press, KeyID: a.Key, Mask: a.ModMask})
	}
}

func (s *Server) synthesizeMouseButton(a filter.MouseButton) {
	active := s.engine.Active()
	if active == s.primaryName {
		return
	}
	conn, ok := s.registry.ByName(active)
	if !ok {
		return
	}
	_ = conn.Send(proto.MouseButton{Down: a.Press, Button: a.Button})
}
