package server

import (
	"github.com/barriernet/barriernet/internal/screen"
	"github.com/barriernet/barriernet/internal/switching"
)

// ScreensaverGuard mirrors original_source's fakeInputBegin/fakeInputEnd
// bracketing of a screensaver transition (§9 supplemented feature): it
// forces and later restores a switch to the primary screen and leaves the
// "in transition" state in the switching engine itself, so ordinary
// jump-zone switching (switching.Engine.HandlePrimaryMotion) is suppressed
// for the duration without this type needing any state of its own.
type ScreensaverGuard struct {
	engine *switching.Engine
	srv    *Server
}

// NewScreensaverGuard wraps engine for server-level screensaver handling.
func NewScreensaverGuard(engine *switching.Engine, srv *Server) *ScreensaverGuard {
	return &ScreensaverGuard{engine: engine, srv: srv}
}

// Begin forces a switch to the primary screen, remembering the screen and
// position to restore on End.
func (g *ScreensaverGuard) Begin(primaryName screen.Name, x, y int) {
	g.engine.EnterScreensaver(primaryName, x, y)
}

// End restores whatever screen was active before Begin, clamped to
// savedShape (the screen may have been resized while the screensaver ran).
func (g *ScreensaverGuard) End(savedShape screen.Shape) {
	g.engine.ExitScreensaver(savedShape)
}

// InProgress reports whether a screensaver transition is currently
// suppressing ordinary switches.
func (g *ScreensaverGuard) InProgress() bool {
	return g.engine.InScreensaver()
}
