// Package client implements the client engine of spec §4: it connects to a
// barriernets server, speaks the §4.3 handshake, then applies every
// synthesized-input and clipboard message to a local screens.SecondaryScreen
// until the connection closes.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/multierr"

	"github.com/barriernet/barriernet/internal/clipboard"
	"github.com/barriernet/barriernet/internal/config"
	"github.com/barriernet/barriernet/internal/filetransfer"
	"github.com/barriernet/barriernet/internal/logging"
	"github.com/barriernet/barriernet/internal/modifiers"
	"github.com/barriernet/barriernet/internal/proto"
	"github.com/barriernet/barriernet/internal/reactor"
	"github.com/barriernet/barriernet/internal/wire"
	"github.com/barriernet/barriernet/internal/workerpool"
	"github.com/barriernet/barriernet/pkg/screens"
)

var log = logging.L("client")

// ErrRestartable marks a connection failure the caller should retry rather
// than treat as fatal (§7 "ClientConnectionFailed{retry: true}").
var ErrRestartable = errors.New("client: connection failed, retry")

// Client is the client-side engine: one active connection's handshake and
// keep-alive state, plus the wiring between parsed wire messages and the
// local screens.SecondaryScreen driver (§3 "Connection", §4.6-§4.7).
type Client struct {
	rx     *reactor.Reactor
	stream *wire.Stream
	conn   net.Conn

	name      string
	secondary screens.SecondaryScreen
	modifiers *modifiers.Table

	State   proto.State
	Version proto.Version

	keepAliveRate        time.Duration
	keepAlivesUntilDeath int
	keepAliveTimer       reactor.TimerID
	hasKeepAlive         bool
	calvTimer            reactor.TimerID
	hasCalvTimer         bool

	clipSeq [2]uint32
	reasm   [2]clipboard.Reassembler

	fileRecv *filetransfer.Receiver
	fileDir  string
	pool     *workerpool.Pool

	active bool
}

// NewClient wires conn (already connected and, if TLS is enabled,
// authenticated) into a Client for screen name, driving secondary as input
// arrives. fileDir is where inbound DFTR transfers are written (§4.9).
func NewClient(conn net.Conn, name string, secondary screens.SecondaryScreen, cfg *config.Config, fileDir string) *Client {
	c := &Client{
		stream:               wire.NewStream(conn),
		conn:                 conn,
		name:                 name,
		secondary:            secondary,
		modifiers:            modifiers.NewTable(),
		keepAliveRate:        cfg.KeepAliveRate,
		keepAlivesUntilDeath: cfg.KeepAlivesUntilDeath,
		fileRecv:             filetransfer.NewReceiver(fileDir),
		fileDir:              fileDir,
		pool:                 workerpool.New(1, 256),
	}
	c.rx = reactor.New(c.handle, 256)
	return c
}

// Run performs the handshake synchronously, then drives the reactor until
// ctx is cancelled, the server closes the connection, or a fatal protocol
// error occurs. The caller (typically a reconnect loop, §5 "Client connect:
// 15s before retry") decides whether to dial again on return.
func (c *Client) Run(ctx context.Context) error {
	if err := c.performHandshake(); err != nil {
		_ = c.conn.Close()
		return fmt.Errorf("%w: %s", ErrRestartable, err)
	}
	c.active = true
	log.Info("connected to server", "screen", c.name, "version", c.Version)

	c.secondary.SetClipboardListener(c)
	c.armKeepAlive()
	c.armCalv()

	go c.readLoop()

	err := c.rx.Run(ctx)
	c.teardown()
	return err
}

// Stop signals the reactor to exit at its next opportunity; Run returns
// once it has.
func (c *Client) Stop() {
	c.rx.Stop()
}

func (c *Client) readLoop() {
	for {
		frame, err := c.stream.ReadFrame()
		if err != nil {
			c.rx.Post(connClosedEvent{err: err})
			return
		}
		if !c.rx.Post(frameEvent{frame: frame}) {
			return
		}
	}
}

// teardown cancels the keep-alive timers, drains the worker pool and
// closes the connection, collecting errors with multierr. Drain reports no
// error, so conn.Close's error is the only one collected.
func (c *Client) teardown() error {
	var errs error
	if c.hasKeepAlive {
		c.rx.Cancel(c.keepAliveTimer)
	}
	if c.hasCalvTimer {
		c.rx.Cancel(c.calvTimer)
	}
	c.pool.StopAccepting()
	c.pool.Drain(context.Background())
	errs = multierr.Append(errs, c.conn.Close())
	return errs
}

func (c *Client) handle(e reactor.Event) {
	switch ev := e.(type) {
	case frameEvent:
		c.onFrame(ev.frame)
	case connClosedEvent:
		log.Info("server connection closed", "screen", c.name, "error", ev.err)
		c.rx.Stop()
	case localClipboardEvent:
		c.onLocalClipboardGrab(ev.id)
	case clipboardReadResultEvent:
		c.onClipboardReadResult(ev)
	case keepAliveFlatlineEvent:
		log.Warn("keep-alive flatline, disconnecting", "screen", c.name)
		c.rx.Stop()
	case calvTickEvent:
		_ = c.send(proto.SimpleMessage(proto.OpCALV))
	case fileChunkResultEvent:
		c.onFileChunkResult(ev)
	default:
		log.Warn("unknown reactor event", "type", fmt.Sprintf("%T", e))
	}
}

// send frames msg and follows it with CNOP, mirroring
// internal/server.Connection.Send (§4.4).
func (c *Client) send(msg proto.Message) error {
	if _, err := c.stream.Write(msg.Marshal()); err != nil {
		return fmt.Errorf("send %s: %w", msg.Opcode(), err)
	}
	_, err := c.stream.Write(proto.Simple(proto.OpCNOP))
	return err
}

func (c *Client) onFrame(frame []byte) {
	op, body, err := proto.ParseOpcode(frame)
	if err != nil {
		log.Warn("malformed frame", "error", err)
		c.rx.Stop()
		return
	}
	c.resetKeepAlive()

	if proto.IsFatalClose(op) {
		log.Info("server closed connection", "opcode", op)
		c.rx.Stop()
		return
	}

	switch op {
	case proto.OpCNOP, proto.OpCALV:
		// keep-alive padding/heartbeat; resetKeepAlive above already handled it.

	case proto.OpCEnter:
		enter, err := proto.UnmarshalEnter(body)
		if err != nil {
			log.Warn("malformed CENTER", "error", err)
			return
		}
		if err := c.secondary.EnterScreen(int(enter.X), int(enter.Y), enter.ToggleMsk); err != nil {
			log.Warn("enter screen failed", "error", err)
		}

	case proto.OpCLeave:
		if err := c.secondary.LeaveScreen(); err != nil {
			log.Warn("leave screen failed", "error", err)
		}

	case proto.OpCSec:
		sec, err := proto.UnmarshalScreensaverToggle(body)
		if err != nil {
			log.Warn("malformed CSEC", "error", err)
			return
		}
		if err := c.secondary.Screensaver(sec.On); err != nil {
			log.Warn("screensaver toggle failed", "error", err)
		}

	case proto.OpOptions:
		opts, err := proto.UnmarshalOptions(body)
		if err != nil {
			log.Warn("malformed DSOP", "error", err)
			return
		}
		c.modifiers.ApplyOptions(opts.Pairs)

	case proto.OpCROP:
		c.modifiers.Reset()

	case proto.OpMouseMove:
		m, err := proto.UnmarshalMouseMove(body)
		if err != nil {
			log.Warn("malformed DMMV", "error", err)
			return
		}
		_ = c.secondary.MouseMove(int(m.X), int(m.Y))

	case proto.OpMouseRel:
		m, err := proto.UnmarshalMouseRelMove(body)
		if err != nil {
			log.Warn("malformed DMRM", "error", err)
			return
		}
		_ = c.secondary.MouseRelativeMove(int(m.DX), int(m.DY))

	case proto.OpMouseWhl:
		m, err := proto.UnmarshalMouseWheel(body)
		if err != nil {
			log.Warn("malformed DMWM", "error", err)
			return
		}
		_ = c.secondary.MouseWheel(int(m.DX), int(m.DY))

	case proto.OpMouseDown, proto.OpMouseUp:
		m, err := proto.UnmarshalMouseButton(op, body)
		if err != nil {
			log.Warn("malformed mouse button frame", "error", err)
			return
		}
		_ = c.secondary.MouseButton(m.Button, m.Down)

	case proto.OpKeyDown, proto.OpKeyUp:
		k, err := proto.UnmarshalKey(op, body)
		if err != nil {
			log.Warn("malformed key frame", "error", err)
			return
		}
		mask := c.modifiers.TranslateMask(k.Mask)
		keyID := c.modifiers.TranslateKey(k.KeyID)
		_ = c.secondary.KeyEvent(keyID, mask, k.Button, k.Down)

	case proto.OpKeyRepeat:
		k, err := proto.UnmarshalKeyRepeat(body)
		if err != nil {
			log.Warn("malformed DKRP", "error", err)
			return
		}
		mask := c.modifiers.TranslateMask(k.Mask)
		keyID := c.modifiers.TranslateKey(k.KeyID)
		_ = c.secondary.KeyRepeat(keyID, mask, k.Count, k.Button)

	case proto.OpQueryInf:
		// The server re-queries shape after a resize notification; reply
		// with fresh DINF the same way the handshake did.
		shape := c.secondary.Shape()
		info := proto.ClientInfo{X: int16(shape.X), Y: int16(shape.Y), W: int16(shape.W), H: int16(shape.H)}
		_ = c.send(info)

	case proto.OpCClip:
		// Another screen grabbed a clipboard; nothing to do locally until
		// the server pushes DCLP to whichever screen is active (§4.7).

	case proto.OpClipChunk:
		chunk, err := proto.UnmarshalClipboardChunk(body)
		if err != nil {
			log.Warn("malformed DCLP", "error", err)
			return
		}
		if blob, done := c.reasm[chunk.ID].Add(chunk); done {
			if err := c.secondary.SetClipboard(uint8(chunk.ID), blob); err != nil {
				log.Warn("apply clipboard failed", "error", err)
			}
		}

	case proto.OpFileChunk:
		fc, err := proto.UnmarshalFileChunk(body)
		if err != nil {
			log.Warn("malformed DFTR", "error", err)
			return
		}
		c.handleFileChunk(fc)

	case proto.OpDragInfo:
		// Wire-complete only; no drag-and-drop UI behind it (Non-goals).

	default:
		log.Warn("unexpected opcode from server", "opcode", op)
	}
}

func (c *Client) handleFileChunk(fc proto.FileChunk) {
	if !c.pool.Submit(func() {
		result, err := c.fileRecv.HandleChunk(fc)
		c.rx.Post(fileChunkResultEvent{result: result, err: err})
	}) {
		log.Warn("file-drop worker pool saturated, chunk dropped")
	}
}

func (c *Client) onFileChunkResult(ev fileChunkResultEvent) {
	if ev.err != nil {
		log.Warn("file-drop failed", "error", ev.err)
		return
	}
	if ev.result != nil {
		log.Info("file-drop received", "path", ev.result.Path, "size", ev.result.Size)
	}
}

// OnClipboardGrabbed implements screens.ClipboardListener for this screen's
// own local OS clipboard.
func (c *Client) OnClipboardGrabbed(id uint8) {
	c.rx.Post(localClipboardEvent{id: proto.ClipboardID(id)})
}

func (c *Client) onLocalClipboardGrab(id proto.ClipboardID) {
	c.clipSeq[id]++
	seq := c.clipSeq[id]
	if !c.pool.Submit(func() {
		blob, err := c.secondary.LocalClipboard(uint8(id))
		c.rx.Post(clipboardReadResultEvent{id: id, seq: seq, blob: blob, err: err})
	}) {
		log.Warn("clipboard read worker pool saturated, grab dropped")
	}
}

// onClipboardReadResult sends the grab notice and, per the reassembly
// comment on internal/server.Connection, proactively streams the grabbed
// content back as DCLP chunks rather than waiting to be asked (§4.7).
func (c *Client) onClipboardReadResult(ev clipboardReadResultEvent) {
	if ev.err != nil {
		log.Warn("read local clipboard failed", "error", ev.err)
		return
	}
	if ev.seq != c.clipSeq[ev.id] {
		return // a newer grab has already superseded this read
	}
	if err := c.send(proto.ClipboardGrab{ID: ev.id, Seq: ev.seq}); err != nil {
		log.Warn("send CCLP failed", "error", err)
		return
	}
	for _, chunk := range clipboard.ChunksFor(ev.id, ev.seq, ev.blob, 4096) {
		if err := c.send(chunk); err != nil {
			log.Warn("send DCLP chunk failed", "error", err)
			return
		}
	}
}

func (c *Client) armKeepAlive() {
	deadline := c.keepAliveRate * time.Duration(c.keepAlivesUntilDeath)
	c.keepAliveTimer = c.rx.Schedule(deadline, func() { c.rx.Post(keepAliveFlatlineEvent{}) })
	c.hasKeepAlive = true
}

func (c *Client) resetKeepAlive() {
	if c.hasKeepAlive {
		c.rx.Cancel(c.keepAliveTimer)
	}
	c.armKeepAlive()
}

func (c *Client) armCalv() {
	c.calvTimer = c.rx.SchedulePeriodic(c.keepAliveRate, func() { c.rx.Post(calvTickEvent{}) })
	c.hasCalvTimer = true
}
