package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/barriernet/barriernet/internal/clipboard"
	"github.com/barriernet/barriernet/internal/config"
	"github.com/barriernet/barriernet/internal/filetransfer"
	"github.com/barriernet/barriernet/internal/filter"
	"github.com/barriernet/barriernet/internal/proto"
	"github.com/barriernet/barriernet/internal/reactor"
	"github.com/barriernet/barriernet/internal/screen"
	"github.com/barriernet/barriernet/internal/switching"
	"github.com/barriernet/barriernet/internal/workerpool"
	"github.com/barriernet/barriernet/pkg/screens"
)

// defaultJumpZone is used for any declared screen whose config left
// JumpZone at 0 (§9: original_source resolves this per-client from an OS
// driver call with no single fixed constant; this implementation picks one
// value for every screen instead).
const defaultJumpZone = 2

// primaryClipboardSource is the pseudo connection id the clipboard engine
// tracks ownership under when the primary's own OS clipboard is grabbed,
// distinct from any real ConnectionID (§4.7).
const primaryClipboardSource = "<primary>"

// Server is the server-side engine of §4.6: it accepts connections, owns
// the registry, switching engine, and clipboard engine, and is the sole
// target every primary-input listener in pkg/screens posts back to.
type Server struct {
	rx       *reactor.Reactor
	ln       net.Listener
	registry *Registry
	topo     *screen.Topology
	engine   *switching.Engine
	clip     *clipboard.Engine
	filters  *filter.List
	primary  screens.PrimaryScreen
	saver    *ScreensaverGuard

	primaryName screen.Name

	keepAliveRate        time.Duration
	keepAlivesUntilDeath int
	clipboardChunkSize   int
	clipSeq              [2]uint32

	fileReceivers map[ConnectionID]*filetransfer.Receiver
	fileDir       string
	pool          *workerpool.Pool

	hotkeys map[screens.HotkeyID]filter.Rule

	virtX, virtY               int
	lastPrimaryX, lastPrimaryY int
	havePrimaryPos             bool

	stopOnce sync.Once
}

// NewServer wires a listener, parsed topology, switching policies, and a
// platform PrimaryScreen driver into a running engine. primaryName must be
// one of topo's declared screens: the machine barriernets itself runs on.
func NewServer(ln net.Listener, topo *screen.Topology, policies switching.Policies, primaryName screen.Name, primary screens.PrimaryScreen, filters *filter.List, cfg *config.Config, fileDir string) *Server {
	s := &Server{
		ln:                   ln,
		registry:             NewRegistry(),
		topo:                 topo,
		clip:                 clipboard.NewEngine(),
		filters:              filters,
		primary:              primary,
		primaryName:          primaryName,
		keepAliveRate:        cfg.KeepAliveRate,
		keepAlivesUntilDeath: cfg.KeepAlivesUntilDeath,
		clipboardChunkSize:   4096,
		fileReceivers:        make(map[ConnectionID]*filetransfer.Receiver),
		fileDir:              fileDir,
		hotkeys:              make(map[screens.HotkeyID]filter.Rule),
	}
	if cfg.ClipboardSharingSize > 0 {
		s.clip.SetSharingLimit(cfg.ClipboardSharingSize)
	}

	s.rx = reactor.New(s.handle, 256)
	// One worker: file-drop chunks for a given connection must apply to
	// disk in arrival order, and filetransfer.Receiver carries no locking
	// of its own, so concurrency beyond one would race (§5, DESIGN.md).
	// Results are posted back onto the reactor rather than touched here,
	// since a pool worker goroutine must never mutate server state directly.
	s.pool = workerpool.New(1, 256, func(res workerpool.Result) {
		s.rx.Post(fileChunkResultEvent{connID: ConnectionID(res.ConnID), result: res.Received, err: res.Err})
	})
	s.engine = switching.NewEngine(topo, policies, s, s.rx, primaryName)
	s.saver = NewScreensaverGuard(s.engine, s)
	s.clip.Register(primaryClipboardSource)

	primary.SetMotionListener(s)
	primary.SetKeyListener(s)
	primary.SetButtonListener(s)
	primary.SetClipboardListener(s)
	primary.SetHotkeyListener(s)
	s.registerHotkeys()

	return s
}

// Serve runs the accept loop and the reactor until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	go s.acceptLoop()
	return s.rx.Run(ctx)
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.rx.Done():
				return
			default:
			}
			log.Warn("accept error", "error", err)
			continue
		}
		go s.connectionLoop(conn)
	}
}

// Stop drains the worker pool and stops the reactor, in that order, so no
// file-transfer result posts after the reactor has exited (§4.10 shutdown
// sequence).
func (s *Server) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		_ = s.ln.Close()
		s.pool.StopAccepting()
	})
	s.pool.Drain(ctx)
	s.rx.Stop()
	<-s.rx.Done()
}

// ReloadConfig posts a re-parsed screens config to the reactor goroutine.
// Safe to call from the fsnotify watcher goroutine in cmd/barriernets.
func (s *Server) ReloadConfig(filters *filter.List, policies switching.Policies) {
	s.rx.Post(configReloadEvent{filters: filters, policies: policies})
}

func (s *Server) onConfigReload(ev configReloadEvent) {
	log.Info("reloaded screens config")
	s.filters = ev.filters
	for id := range s.hotkeys {
		if err := s.primary.UnregisterHotkey(id); err != nil {
			log.Warn("unregister hotkey failed", "id", id, "error", err)
		}
	}
	s.hotkeys = make(map[screens.HotkeyID]filter.Rule)
	s.registerHotkeys()
	s.engine.SetPolicies(ev.policies)
}

func (s *Server) connectionLoop(netConn net.Conn) {
	c := newConnection(netConn)
	info, err := s.performHandshake(c)
	if err != nil {
		log.Warn("handshake failed", "addr", c.RemoteAddr(), "error", err)
		_ = c.Close()
		return
	}
	if !s.rx.Post(connActiveEvent{id: c.ID, info: info}) {
		_ = c.Close()
		return
	}
	for {
		frame, err := c.stream.ReadFrame()
		if err != nil {
			s.rx.Post(connClosedEvent{id: c.ID, err: err})
			return
		}
		if !s.rx.Post(frameEvent{id: c.ID, frame: frame}) {
			return
		}
	}
}

// handle is the reactor's single dispatch point (§5).
func (s *Server) handle(e reactor.Event) {
	switch ev := e.(type) {
	case nameClaimEvent:
		s.onNameClaim(ev)
	case connActiveEvent:
		s.onConnActive(ev.id, ev.info)
	case frameEvent:
		s.onFrame(ev.id, ev.frame)
	case connClosedEvent:
		s.onConnClosed(ev.id, ev.err)
	case primaryMotionEvent:
		s.onPrimaryMotion(ev.x, ev.y)
	case primaryKeyEvent:
		s.onPrimaryKey(ev.key, ev.mask, ev.button, ev.down)
	case primaryKeyRepeatEvent:
		s.onPrimaryKeyRepeat(ev.key, ev.mask, ev.count, ev.button)
	case primaryButtonEvent:
		s.onPrimaryButtonEvent(ev.button, ev.down)
	case primaryWheelEvent:
		s.onPrimaryWheel(ev.dx, ev.dy)
	case primaryClipboardEvent:
		s.onPrimaryClipboardGrab(ev.id)
	case primaryHotkeyEvent:
		s.onHotkey(ev.id, ev.down)
	case keepAliveFlatlineEvent:
		s.onKeepAliveFlatline(ev.id)
	case calvTickEvent:
		s.onCalvTick(ev.id)
	case fileChunkResultEvent:
		s.onFileChunkResult(ev)
	case configReloadEvent:
		s.onConfigReload(ev)
	default:
		log.Warn("unknown reactor event", "type", fmt.Sprintf("%T", e))
	}
}

func (s *Server) onNameClaim(ev nameClaimEvent) {
	scr, declared := s.topo.Resolve(string(ev.name))
	if !declared {
		ev.reply <- claimUnknown
		return
	}
	if s.registry.NameTaken(scr.Name) {
		ev.reply <- claimBusy
		return
	}
	s.registry.Add(ev.conn)
	s.registry.NameClaimed(ev.conn, scr.Name)
	ev.reply <- claimOK
}

func (s *Server) onConnActive(id ConnectionID, info proto.ClientInfo) {
	c, ok := s.registry.ByID(id)
	if !ok {
		return
	}
	c.State = proto.StateActive

	if scr, ok := s.topo.Screen(c.Name); ok {
		scr.Connect(screen.Shape{X: int(info.X), Y: int(info.Y), W: int(info.W), H: int(info.H)})
	}

	s.clip.Register(string(c.ID))
	s.armKeepAlive(c)
	s.armCalv(c)
	// No clipboard push here: a freshly connected screen isn't the active
	// one yet (it can't become active before this point), so it gets
	// caught up lazily from Enter() like every other switch (§4.7).

	s.filters.Handle(filter.Event{Kind: filter.EventServerConnected, ScreenName: string(c.Name)}, s)

	log.Info("client connected", "screen", c.Name, "addr", c.RemoteAddr(), "version", c.Version)
}

func (s *Server) onFrame(id ConnectionID, frame []byte) {
	c, ok := s.registry.ByID(id)
	if !ok {
		return
	}
	s.handleActiveFrame(c, frame)
}

func (s *Server) handleActiveFrame(c *Connection, frame []byte) {
	op, body, err := proto.ParseOpcode(frame)
	if err != nil {
		log.Warn("malformed frame", "connection", c.Name, "error", err)
		s.closeConnection(c, err)
		return
	}

	s.resetKeepAlive(c)

	switch op {
	case proto.OpCNOP, proto.OpCALV:
		// keep-alive padding/heartbeat; the reset above already handled it.

	case proto.OpCBYE:
		s.closeConnection(c, errors.New("client closed (CBYE)"))

	case proto.OpCClip:
		grab, err := proto.UnmarshalClipboardGrab(body)
		if err != nil {
			log.Warn("malformed CCLP", "connection", c.Name, "error", err)
			return
		}
		if s.clip.Grab(string(c.ID), grab.ID, grab.Seq) {
			s.broadcastClipboardGrab(grab.ID, string(c.ID))
		}

	case proto.OpClipChunk:
		chunk, err := proto.UnmarshalClipboardChunk(body)
		if err != nil {
			log.Warn("malformed DCLP", "connection", c.Name, "error", err)
			return
		}
		if blob, done := c.reasm[chunk.ID].Add(chunk); done {
			s.clip.SetContent(chunk.ID, blob)
			if err := s.primary.SetClipboard(uint8(chunk.ID), blob); err != nil {
				log.Warn("apply clipboard to primary failed", "error", err)
			}
			// Every other connection's Sent flag was already cleared by
			// Grab(); the content itself reaches them lazily from Enter()
			// once they become active, not by an immediate push here.
		}

	case proto.OpFileChunk:
		fc, err := proto.UnmarshalFileChunk(body)
		if err != nil {
			log.Warn("malformed DFTR", "connection", c.Name, "error", err)
			return
		}
		s.handleFileChunk(c, fc)

	case proto.OpDragInfo:
		// Wire-complete only; no drag-and-drop UI behind it (Non-goals).

	case proto.OpClientInf:
		info, err := proto.UnmarshalClientInfo(body)
		if err != nil {
			log.Warn("malformed DINF", "connection", c.Name, "error", err)
			return
		}
		if scr, ok := s.topo.Screen(c.Name); ok {
			scr.Connect(screen.Shape{X: int(info.X), Y: int(info.Y), W: int(info.W), H: int(info.H)})
		}

	default:
		log.Warn("unexpected opcode from client", "connection", c.Name, "opcode", op)
	}
}

func (s *Server) handleFileChunk(c *Connection, fc proto.FileChunk) {
	recv, ok := s.fileReceivers[c.ID]
	if !ok {
		recv = filetransfer.NewReceiver(s.fileDir)
		s.fileReceivers[c.ID] = recv
	}
	if !s.pool.Submit(workerpool.Job{ConnID: string(c.ID), Recv: recv, Chunk: fc}) {
		log.Warn("file-drop worker pool saturated, chunk dropped", "connection", c.Name)
	}
}

func (s *Server) onFileChunkResult(ev fileChunkResultEvent) {
	if ev.err != nil {
		log.Warn("file-drop failed", "connection", ev.connID, "error", ev.err)
		return
	}
	if ev.result != nil {
		log.Info("file-drop received", "connection", ev.connID, "path", ev.result.Path, "size", ev.result.Size)
	}
}

func (s *Server) onConnClosed(id ConnectionID, err error) {
	c, ok := s.registry.ByID(id)
	if !ok {
		return
	}
	s.closeConnection(c, err)
}

func (s *Server) closeConnection(c *Connection, err error) {
	if c.State == proto.StateClosed {
		return
	}
	c.State = proto.StateClosed

	if c.hasKeepAlive {
		s.rx.Cancel(c.keepAliveTimer)
	}
	if c.hasCalvTimer {
		s.rx.Cancel(c.calvTimer)
	}
	s.clip.Unregister(string(c.ID))
	delete(s.fileReceivers, c.ID)
	s.registry.Remove(c)
	_ = c.Close()

	log.Info("client disconnected", "screen", c.Name, "error", err)

	if s.engine.Active() == c.Name {
		s.engine.SwitchTo(s.primaryName)
	}
}

func (s *Server) armKeepAlive(c *Connection) {
	deadline := s.keepAliveRate * time.Duration(s.keepAlivesUntilDeath)
	id := c.ID
	c.keepAliveTimer = s.rx.Schedule(deadline, func() { s.rx.Post(keepAliveFlatlineEvent{id: id}) })
	c.hasKeepAlive = true
}

func (s *Server) resetKeepAlive(c *Connection) {
	if c.hasKeepAlive {
		s.rx.Cancel(c.keepAliveTimer)
	}
	s.armKeepAlive(c)
}

func (s *Server) armCalv(c *Connection) {
	id := c.ID
	c.calvTimer = s.rx.SchedulePeriodic(s.keepAliveRate, func() { s.rx.Post(calvTickEvent{id: id}) })
	c.hasCalvTimer = true
}

func (s *Server) onCalvTick(id ConnectionID) {
	if c, ok := s.registry.ByID(id); ok {
		_ = c.Send(proto.SimpleMessage(proto.OpCALV))
	}
}

func (s *Server) onKeepAliveFlatline(id ConnectionID) {
	c, ok := s.registry.ByID(id)
	if !ok {
		return
	}
	log.Warn("keep-alive flatline", "screen", c.Name)
	s.closeConnection(c, errors.New("keep-alive flatline"))
}

// EnterScreensaver is called when the primary's local screensaver starts,
// forcing a transition to the primary screen and notifying every connected
// secondary in lockstep (§4.6, ScreensaverGuard). The platform driver behind
// screens.PrimaryScreen is responsible for detecting this and invoking it;
// no generic OS screensaver-change hook exists in pkg/screens today.
func (s *Server) EnterScreensaver() {
	s.saver.Begin(s.primaryName, s.virtX, s.virtY)
	s.broadcastScreensaver(true)
}

// ExitScreensaver restores whatever screen/position was active before the
// screensaver started.
func (s *Server) ExitScreensaver() {
	shape := s.primary.Shape()
	if scr, ok := s.topo.Screen(s.engine.SavedScreen()); ok {
		shape = scr.Shape
	}
	s.saver.End(shape)
	s.broadcastScreensaver(false)
}

func (s *Server) broadcastScreensaver(on bool) {
	for _, c := range s.registry.All() {
		_ = c.Send(proto.ScreensaverToggle{On: on})
	}
}

// Leave implements switching.Primary.
func (s *Server) Leave(from screen.Name) {
	if from == s.primaryName {
		if err := s.primary.Hide(); err != nil {
			log.Warn("hide primary cursor failed", "error", err)
		}
		return
	}
	if c, ok := s.registry.ByName(from); ok {
		_ = c.Send(proto.SimpleMessage(proto.OpCLeave))
	}
}

// Enter implements switching.Primary.
func (s *Server) Enter(to screen.Name, x, y int, seq uint32, toggleMask uint16, saver bool) {
	s.virtX, s.virtY = x, y

	if to == s.primaryName {
		s.engine.SetRelativeMode(false)
		if err := s.primary.WarpCursor(x, y); err != nil {
			log.Warn("warp cursor failed", "error", err)
		}
		if err := s.primary.Show(); err != nil {
			log.Warn("show primary cursor failed", "error", err)
		}
		return
	}

	c, ok := s.registry.ByName(to)
	if !ok {
		return
	}
	c.enterSeqOfLast = seq
	_ = c.Send(proto.Enter{X: int16(x), Y: int16(y), Seq: seq, ToggleMsk: toggleMask, Saver: saver})
	s.engine.SetRelativeMode(s.engine.LockedToScreen())

	if err := s.primary.Hide(); err != nil {
		log.Warn("hide primary cursor failed", "error", err)
	}
	s.pushClipboards(c)
}

func (s *Server) zoneWidthFor(name screen.Name) int {
	scr, ok := s.topo.Screen(name)
	if !ok || scr.JumpZone <= 0 {
		return defaultJumpZone
	}
	return scr.JumpZone
}

// OnMotion implements screens.MotionListener.
func (s *Server) OnMotion(x, y int) { s.rx.Post(primaryMotionEvent{x: x, y: y}) }

func (s *Server) onPrimaryMotion(x, y int) {
	active := s.engine.Active()

	if active == s.primaryName {
		s.virtX, s.virtY = x, y
		s.lastPrimaryX, s.lastPrimaryY = x, y
		s.havePrimaryPos = true
		s.engine.HandlePrimaryMotion(s.primary.Shape(), s.zoneWidthFor(s.primaryName), x, y)
		return
	}

	if !s.havePrimaryPos {
		s.lastPrimaryX, s.lastPrimaryY = x, y
		s.havePrimaryPos = true
		return
	}
	dx, dy := x-s.lastPrimaryX, y-s.lastPrimaryY
	s.lastPrimaryX, s.lastPrimaryY = x, y
	if dx == 0 && dy == 0 {
		return
	}

	conn, ok := s.registry.ByName(active)
	if !ok {
		return
	}
	scr, ok := s.topo.Screen(active)
	if !ok {
		return
	}

	s.virtX = clampInt(s.virtX+int(dx), scr.Shape.X, scr.Shape.X+scr.Shape.W-1)
	s.virtY = clampInt(s.virtY+int(dy), scr.Shape.Y, scr.Shape.Y+scr.Shape.H-1)

	s.engine.HandlePrimaryMotion(scr.Shape, s.zoneWidthFor(active), s.virtX, s.virtY)
	if s.engine.Active() != active {
		return // a switch fired; Leave/Enter already re-pointed everything
	}

	if s.engine.RelativeMode() {
		_ = conn.Send(proto.MouseRelMove{DX: int16(dx), DY: int16(dy)})
	} else {
		_ = conn.Send(proto.MouseMove{X: int16(s.virtX), Y: int16(s.virtY)})
	}
}

// OnKeyDown implements screens.KeyListener.
func (s *Server) OnKeyDown(key, mask, button uint16) {
	s.rx.Post(primaryKeyEvent{key: key, mask: mask, button: button, down: true})
}

// OnKeyUp implements screens.KeyListener.
func (s *Server) OnKeyUp(key, mask, button uint16) {
	s.rx.Post(primaryKeyEvent{key: key, mask: mask, button: button, down: false})
}

// OnKeyRepeat implements screens.KeyListener.
func (s *Server) OnKeyRepeat(key, mask, count, button uint16) {
	s.rx.Post(primaryKeyRepeatEvent{key: key, mask: mask, count: count, button: button})
}

func (s *Server) onPrimaryKey(key, mask, button uint16, down bool) {
	s.engine.SetModifiers(mask)

	active := s.engine.Active()
	if active == s.primaryName {
		return
	}
	conn, ok := s.registry.ByName(active)
	if !ok {
		return
	}
	out := conn.Modifiers.TranslateMask(mask)
	keyID := conn.Modifiers.TranslateKey(key)
	_ = conn.Send(proto.Key{Down: down, KeyID: keyID, Mask: out, Button: button})
}

func (s *Server) onPrimaryKeyRepeat(key, mask, count, button uint16) {
	active := s.engine.Active()
	if active == s.primaryName {
		return
	}
	conn, ok := s.registry.ByName(active)
	if !ok {
		return
	}
	out := conn.Modifiers.TranslateMask(mask)
	keyID := conn.Modifiers.TranslateKey(key)
	_ = conn.Send(proto.KeyRepeat{KeyID: keyID, Mask: out, Count: count, Button: button})
}

// OnButtonDown implements screens.ButtonListener.
func (s *Server) OnButtonDown(button uint8) { s.rx.Post(primaryButtonEvent{button: button, down: true}) }

// OnButtonUp implements screens.ButtonListener.
func (s *Server) OnButtonUp(button uint8) { s.rx.Post(primaryButtonEvent{button: button, down: false}) }

// OnWheel implements screens.ButtonListener.
func (s *Server) OnWheel(dx, dy int16) { s.rx.Post(primaryWheelEvent{dx: dx, dy: dy}) }

func (s *Server) onPrimaryButtonEvent(button uint8, down bool) {
	active := s.engine.Active()
	if active == s.primaryName {
		return
	}
	conn, ok := s.registry.ByName(active)
	if !ok {
		return
	}
	_ = conn.Send(proto.MouseButton{Down: down, Button: button})
}

func (s *Server) onPrimaryWheel(dx, dy int16) {
	active := s.engine.Active()
	if active == s.primaryName {
		return
	}
	conn, ok := s.registry.ByName(active)
	if !ok {
		return
	}
	_ = conn.Send(proto.MouseWheel{DX: dx, DY: dy})
}

// OnClipboardGrabbed implements screens.ClipboardListener, for the primary's
// own OS clipboard changing owner.
func (s *Server) OnClipboardGrabbed(id uint8) {
	s.rx.Post(primaryClipboardEvent{id: proto.ClipboardID(id)})
}

func (s *Server) onPrimaryClipboardGrab(id proto.ClipboardID) {
	s.clipSeq[id]++
	if !s.clip.Grab(primaryClipboardSource, id, s.clipSeq[id]) {
		return
	}
	blob, err := s.primary.LocalClipboard(uint8(id))
	if err != nil {
		log.Warn("read local clipboard failed", "error", err)
		return
	}
	s.clip.SetContent(id, blob)
	// Only forward the CCLP grab notice here; the DCLP content push is
	// lazy and happens solely from Enter() for whichever screen actually
	// becomes active next (§4.7), not eagerly to every connection.
	s.broadcastClipboardGrab(id, primaryClipboardSource)
}

func (s *Server) broadcastClipboardGrab(id proto.ClipboardID, sourceConnID string) {
	slot := s.clip.Slot(id)
	for _, c := range s.registry.All() {
		if string(c.ID) == sourceConnID {
			continue
		}
		_ = c.Send(proto.ClipboardGrab{ID: id, Seq: slot.Seq})
	}
}

func (s *Server) pushClipboards(conn *Connection) {
	for _, id := range []proto.ClipboardID{proto.ClipboardSelection, proto.ClipboardGeneral} {
		blob, ok := s.clip.PushTarget(string(conn.ID), id)
		if !ok {
			continue
		}
		slot := s.clip.Slot(id)
		for _, chunk := range clipboard.ChunksFor(id, slot.Seq, blob, s.clipboardChunkSize) {
			if err := conn.Send(chunk); err != nil {
				log.Warn("clipboard push failed", "connection", conn.Name, "error", err)
				return
			}
		}
		s.clip.MarkSent(string(conn.ID), id)
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
