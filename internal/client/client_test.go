package client

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/barriernet/barriernet/internal/clipboard"
	"github.com/barriernet/barriernet/internal/config"
	"github.com/barriernet/barriernet/internal/proto"
	"github.com/barriernet/barriernet/internal/screen"
	"github.com/barriernet/barriernet/internal/wire"
	"github.com/barriernet/barriernet/pkg/screens"
)

// fakeSecondary is a recording screens.SecondaryScreen stub, the client-side
// counterpart of internal/server's fakePrimary test double.
type fakeSecondary struct {
	mu         sync.Mutex
	shape      screen.Shape
	entered    []struct{ x, y int }
	left       int
	moves      []struct{ x, y int }
	relMoves   []struct{ dx, dy int }
	keys       []proto.Key
	clipSet    map[uint8][]byte
	clipLocal  map[uint8][]byte
	clipListen screens.ClipboardListener
	saverCalls []bool
}

func newFakeSecondary(shape screen.Shape) *fakeSecondary {
	return &fakeSecondary{shape: shape, clipSet: map[uint8][]byte{}, clipLocal: map[uint8][]byte{}}
}

func (f *fakeSecondary) Shape() screen.Shape { return f.shape }

func (f *fakeSecondary) EnterScreen(x, y int, toggleMask uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entered = append(f.entered, struct{ x, y int }{x, y})
	return nil
}

func (f *fakeSecondary) LeaveScreen() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left++
	return nil
}

func (f *fakeSecondary) MouseMove(x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, struct{ x, y int }{x, y})
	return nil
}

func (f *fakeSecondary) MouseRelativeMove(dx, dy int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relMoves = append(f.relMoves, struct{ dx, dy int }{dx, dy})
	return nil
}

func (f *fakeSecondary) MouseWheel(dx, dy int) error            { return nil }
func (f *fakeSecondary) MouseButton(button uint8, down bool) error { return nil }

func (f *fakeSecondary) KeyEvent(key, mask, button uint16, down bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, proto.Key{KeyID: key, Mask: mask, Button: button, Down: down})
	return nil
}

func (f *fakeSecondary) KeyRepeat(key, mask, count, button uint16) error { return nil }

func (f *fakeSecondary) SetClipboard(id uint8, blob []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(blob))
	copy(cp, blob)
	f.clipSet[id] = cp
	return nil
}

func (f *fakeSecondary) LocalClipboard(id uint8) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clipLocal[id], nil
}

func (f *fakeSecondary) SetClipboardListener(l screens.ClipboardListener) { f.clipListen = l }

func (f *fakeSecondary) Screensaver(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saverCalls = append(f.saverCalls, on)
	return nil
}

func (f *fakeSecondary) grabLocally(id uint8, blob []byte) {
	f.mu.Lock()
	f.clipLocal[id] = blob
	listener := f.clipListen
	f.mu.Unlock()
	listener.OnClipboardGrabbed(id)
}

func (f *fakeSecondary) snapshot() *fakeSecondary {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f
	return &cp
}

// fakeServerSide performs the server half of the §4.3 handshake by hand
// over a raw TCP connection, the mirror image of
// internal/server_test.dialAndHandshake.
func fakeServerSide(t *testing.T, conn net.Conn) *wire.Stream {
	t.Helper()
	s := wire.NewStream(conn)

	_, err := s.Write(proto.MarshalHello(proto.Hello{Version: proto.Current}))
	require.NoError(t, err)

	frame, err := s.ReadFrame()
	require.NoError(t, err)
	hello, err := proto.UnmarshalHelloBack(frame[len(proto.HelloMagic):])
	require.NoError(t, err)
	require.Equal(t, "secondary", hello.Name)

	_, err = s.Write(proto.Simple(proto.OpCIAK))
	require.NoError(t, err)
	_, err = s.Write(proto.Simple(proto.OpQueryInf))
	require.NoError(t, err)

	dinf, err := s.ReadFrame()
	require.NoError(t, err)
	op, _, err := proto.ParseOpcode(dinf)
	require.NoError(t, err)
	require.Equal(t, proto.OpClientInf, op)

	return s
}

func newConnectedPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var serverConn net.Conn
	accepted := make(chan struct{})
	go func() {
		serverConn, _ = ln.Accept()
		close(accepted)
	}()

	clientConn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	<-accepted
	return clientConn, serverConn
}

func TestClientHandshakeReachesActive(t *testing.T) {
	clientConn, serverConn := newConnectedPair(t)
	defer serverConn.Close()

	secondary := newFakeSecondary(screen.Shape{X: 0, Y: 0, W: 800, H: 600})
	cfg := config.Default()
	cfg.KeepAliveRate = time.Hour
	c := NewClient(clientConn, "secondary", secondary, cfg, t.TempDir())

	done := make(chan error, 1)
	go func() {
		s := fakeServerSide(t, serverConn)
		_ = s
		done <- nil
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	require.NoError(t, <-done)
	require.Eventually(t, func() bool { return c.State == proto.StateActive }, time.Second, time.Millisecond)
	c.Stop()
	<-runErr
}

func TestClientAppliesEnterLeaveAndMotion(t *testing.T) {
	clientConn, serverConn := newConnectedPair(t)
	defer serverConn.Close()

	secondary := newFakeSecondary(screen.Shape{X: 0, Y: 0, W: 800, H: 600})
	cfg := config.Default()
	cfg.KeepAliveRate = time.Hour
	c := NewClient(clientConn, "secondary", secondary, cfg, t.TempDir())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	s := fakeServerSide(t, serverConn)

	_, err := s.Write(proto.Enter{X: 1, Y: 300, Seq: 1}.Marshal())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(secondary.snapshot().entered) == 1 }, time.Second, time.Millisecond)
	require.Equal(t, 1, secondary.snapshot().entered[0].x)
	require.Equal(t, 300, secondary.snapshot().entered[0].y)

	_, err = s.Write(proto.MouseMove{X: 10, Y: 20}.Marshal())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(secondary.snapshot().moves) == 1 }, time.Second, time.Millisecond)

	_, err = s.Write(proto.Simple(proto.OpCLeave))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return secondary.snapshot().left == 1 }, time.Second, time.Millisecond)

	c.Stop()
	<-runErr
}

func TestClientRelaysLocalClipboardGrab(t *testing.T) {
	clientConn, serverConn := newConnectedPair(t)
	defer serverConn.Close()

	secondary := newFakeSecondary(screen.Shape{X: 0, Y: 0, W: 800, H: 600})
	cfg := config.Default()
	cfg.KeepAliveRate = time.Hour
	c := NewClient(clientConn, "secondary", secondary, cfg, t.TempDir())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	s := fakeServerSide(t, serverConn)

	blob := clipboard.Marshal([]clipboard.Format{{ID: 1, Data: []byte("hello")}})
	secondary.grabLocally(1, blob)

	require.NoError(t, serverConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	frame, err := s.ReadFrame()
	require.NoError(t, err)
	op, body, err := proto.ParseOpcode(frame)
	require.NoError(t, err)
	require.Equal(t, proto.OpCClip, op)
	grab, err := proto.UnmarshalClipboardGrab(body)
	require.NoError(t, err)
	require.Equal(t, uint32(1), grab.Seq)

	c.Stop()
	<-runErr
}
