package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/barriernet/barriernet/internal/config"
	"github.com/barriernet/barriernet/internal/filter"
	"github.com/barriernet/barriernet/internal/proto"
	"github.com/barriernet/barriernet/internal/screen"
	"github.com/barriernet/barriernet/internal/switching"
	"github.com/barriernet/barriernet/internal/wire"
	"github.com/barriernet/barriernet/pkg/screens"
)

// fakePrimary is a no-op screens.PrimaryScreen stub recording listener
// registrations, grounded on the teacher's recordingPrimary test double
// pattern (switching/engine_test.go) applied to the wider interface this
// package drives.
type fakePrimary struct {
	shape   screen.Shape
	motion  screens.MotionListener
	keys    screens.KeyListener
	buttons screens.ButtonListener
	clip    screens.ClipboardListener
	hotkeys screens.HotkeyListener
	nextID  screens.HotkeyID
}

func (p *fakePrimary) Shape() screen.Shape { return p.shape }
func (p *fakePrimary) Hide() error         { return nil }
func (p *fakePrimary) Show() error         { return nil }
func (p *fakePrimary) WarpCursor(x, y int) error { return nil }
func (p *fakePrimary) RegisterHotkey(key, mask uint16) (screens.HotkeyID, error) {
	p.nextID++
	return p.nextID, nil
}
func (p *fakePrimary) UnregisterHotkey(id screens.HotkeyID) error { return nil }
func (p *fakePrimary) LocalClipboard(id uint8) ([]byte, error)    { return nil, nil }
func (p *fakePrimary) SetClipboard(id uint8, blob []byte) error   { return nil }
func (p *fakePrimary) SetMotionListener(l screens.MotionListener)       { p.motion = l }
func (p *fakePrimary) SetKeyListener(l screens.KeyListener)             { p.keys = l }
func (p *fakePrimary) SetButtonListener(l screens.ButtonListener)       { p.buttons = l }
func (p *fakePrimary) SetClipboardListener(l screens.ClipboardListener) { p.clip = l }
func (p *fakePrimary) SetHotkeyListener(l screens.HotkeyListener)       { p.hotkeys = l }

func newTestServer(t *testing.T) (*Server, net.Listener) {
	t.Helper()
	topo := screen.NewTopology()
	primaryScreen := screen.NewScreen(screen.Name("primary"))
	primaryScreen.Connect(screen.Shape{X: 0, Y: 0, W: 1920, H: 1080})
	topo.AddScreen(primaryScreen)
	secondary := screen.NewScreen(screen.Name("secondary"))
	topo.AddScreen(secondary)
	require.NoError(t, topo.AddLink(screen.Name("primary"), proto.EdgeRight, 0, 1, screen.Name("secondary")))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.KeepAliveRate = time.Hour
	cfg.KeepAlivesUntilDeath = 3

	primary := &fakePrimary{shape: screen.Shape{X: 0, Y: 0, W: 1920, H: 1080}}
	srv := NewServer(ln, topo, switching.Policies{}, screen.Name("primary"), primary, &filter.List{}, cfg, t.TempDir())
	return srv, ln
}

// dialAndHandshake performs the client side of the §4.3 handshake by hand,
// the way a real internal/client connection would, and returns the
// connected stream for further frame exchange.
func dialAndHandshake(t *testing.T, addr string, name string) (*wire.Stream, error) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	s := wire.NewStream(conn)

	greeting, err := s.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, proto.HelloMagic, string(greeting[:len(proto.HelloMagic)]))

	_, err = s.Write(proto.MarshalHello(proto.Hello{Version: proto.Current, Name: name}))
	require.NoError(t, err)

	reply, err := s.ReadFrame()
	if err != nil {
		return nil, err
	}
	op, _, err := proto.ParseOpcode(reply)
	require.NoError(t, err)
	if op != proto.OpCIAK {
		return s, errUnexpectedOpcode(op)
	}

	qinf, err := s.ReadFrame()
	require.NoError(t, err)
	op, _, err = proto.ParseOpcode(qinf)
	require.NoError(t, err)
	require.Equal(t, proto.OpQueryInf, op)

	_, err = s.Write(proto.ClientInfo{X: 0, Y: 0, W: 800, H: 600}.Marshal())
	require.NoError(t, err)

	return s, nil
}

type errUnexpectedOpcode proto.Opcode

func (e errUnexpectedOpcode) Error() string { return "unexpected opcode: " + string(e) }

func TestServerHandshakeClaimsName(t *testing.T) {
	srv, ln := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx) }()

	_, err := dialAndHandshake(t, ln.Addr().String(), "secondary")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := srv.registry.ByName(screen.Name("secondary"))
		return ok
	}, time.Second, time.Millisecond)
}

func TestServerHandshakeRejectsUnknownScreen(t *testing.T) {
	srv, ln := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx) }()

	_, err := dialAndHandshake(t, ln.Addr().String(), "nowhere")
	require.Error(t, err)
	require.Equal(t, errUnexpectedOpcode(proto.OpEUnknown), err)
}

func TestServerHandshakeRejectsDuplicateName(t *testing.T) {
	srv, ln := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx) }()

	_, err := dialAndHandshake(t, ln.Addr().String(), "secondary")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return srv.registry.Count() == 1
	}, time.Second, time.Millisecond)

	_, err = dialAndHandshake(t, ln.Addr().String(), "secondary")
	require.Error(t, err)
	require.Equal(t, errUnexpectedOpcode(proto.OpEBusy), err)
}

func TestServerSwitchToScreenDispatch(t *testing.T) {
	srv, ln := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx) }()

	_, err := dialAndHandshake(t, ln.Addr().String(), "secondary")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return srv.registry.Count() == 1
	}, time.Second, time.Millisecond)

	// Dispatch is normally only called from the reactor goroutine (via
	// onHotkey); nothing else touches engine state at this point in the
	// test, so calling it directly here is safe.
	srv.Dispatch(filter.SwitchToScreen{Name: "secondary"})

	require.Eventually(t, func() bool {
		return srv.engine.Active() == screen.Name("secondary")
	}, time.Second, time.Millisecond)
}
