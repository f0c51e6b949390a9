package server

import (
	"github.com/barriernet/barriernet/internal/filetransfer"
	"github.com/barriernet/barriernet/internal/filter"
	"github.com/barriernet/barriernet/internal/proto"
	"github.com/barriernet/barriernet/internal/screen"
	"github.com/barriernet/barriernet/internal/switching"
	"github.com/barriernet/barriernet/pkg/screens"
)

// nameClaimResult is the outcome of a claimName round trip (§4.3 EBSY / EUNK).
type nameClaimResult int

const (
	claimOK nameClaimResult = iota
	claimBusy
	claimUnknown
)

// nameClaimEvent is the one synchronous bridge between a connection's
// handshake goroutine and the reactor's exclusively-owned Registry: the
// handshake goroutine posts this and blocks on reply rather than touching
// the registry directly (§5 "the reactor is the only mutator of shared
// server state").
type nameClaimEvent struct {
	conn  *Connection
	name  screen.Name
	reply chan nameClaimResult
}

// connActiveEvent announces that a connection finished its handshake
// (including DINF) and should be wired into the live engine state.
type connActiveEvent struct {
	id   ConnectionID
	info proto.ClientInfo
}

// frameEvent carries one already-framed payload from a connection's reader
// goroutine to the reactor.
type frameEvent struct {
	id    ConnectionID
	frame []byte
}

// connClosedEvent announces that a connection's reader goroutine observed
// EOF or an error and has stopped.
type connClosedEvent struct {
	id  ConnectionID
	err error
}

type primaryMotionEvent struct{ x, y int }

type primaryKeyEvent struct {
	key, mask, button uint16
	down              bool
}

type primaryKeyRepeatEvent struct {
	key, mask, count, button uint16
}

type primaryButtonEvent struct {
	button uint8
	down   bool
}

type primaryWheelEvent struct{ dx, dy int16 }

type primaryClipboardEvent struct{ id proto.ClipboardID }

type primaryHotkeyEvent struct {
	id   screens.HotkeyID
	down bool
}

type keepAliveFlatlineEvent struct{ id ConnectionID }

type calvTickEvent struct{ id ConnectionID }

// fileChunkResultEvent carries a completed or failed DFTR transfer back from
// the worker pool to the reactor goroutine (§5 "ambient worker pool").
type fileChunkResultEvent struct {
	connID ConnectionID
	result *filetransfer.Received
	err    error
}

// configReloadEvent carries a re-parsed screens config file (hotkeys and
// switching policies only — topology changes still require a restart,
// since reshaping live connection links mid-session isn't supported) from
// the fsnotify watcher goroutine to the reactor.
type configReloadEvent struct {
	filters  *filter.List
	policies switching.Policies
}
