package proto

import (
	"github.com/barriernet/barriernet/internal/wire"
)

// Message is any wire message that can be framed over a Stream.
type Message interface {
	Opcode() Opcode
	Marshal() []byte
}

// Hello is the server's opening greeting and the client's reply (§4.3). Both
// directions share the struct; Name is empty in the server->client
// direction.
type Hello struct {
	Version Version
	Name    string // only set on the client's HelloBack
}

// MarshalHello encodes the literal "Barrier" magic plus version, and the
// name field only when non-empty (the server's greeting omits it).
func MarshalHello(h Hello) []byte {
	w := wire.NewWriter(HelloMagic)
	w.PutUint16(h.Version.Major).PutUint16(h.Version.Minor)
	if h.Name != "" {
		w.PutString(h.Name)
	}
	return w.Bytes()
}

// UnmarshalHelloBack parses the client's reply, which always carries a name.
func UnmarshalHelloBack(body []byte) (Hello, error) {
	r := wire.NewReader(body)
	h := Hello{
		Version: Version{Major: r.Uint16(), Minor: r.Uint16()},
		Name:    r.String(),
	}
	if err := r.Finish(); err != nil {
		return Hello{}, err
	}
	return h, nil
}

// UnmarshalHelloGreeting parses the server's opening greeting (no name).
func UnmarshalHelloGreeting(body []byte) (Version, error) {
	r := wire.NewReader(body)
	v := Version{Major: r.Uint16(), Minor: r.Uint16()}
	if err := r.Finish(); err != nil {
		return Version{}, err
	}
	return v, nil
}

// Simple encodes any opcode-only message (CIAK, CROP, CNOP, CALV, CBYE,
// CLEAVE, QINF, EBAD, EBSY, EUNK).
func Simple(op Opcode) []byte {
	return wire.NewWriter(string(op)).Bytes()
}

// SimpleMessage adapts an opcode-only frame to the Message interface, so
// Connection.Send can carry CIAK/CROP/CALV/CBYE/CLEAVE/QINF/EBAD/EBSY/EUNK
// the same way it carries any other outgoing message.
type SimpleMessage Opcode

func (s SimpleMessage) Opcode() Opcode  { return Opcode(s) }
func (s SimpleMessage) Marshal() []byte { return Simple(Opcode(s)) }

// EIncompatibleVersion encodes the server's EICV close, which carries its
// own version so the client can log what it was offered.
func EIncompatibleVersion(v Version) []byte {
	return wire.NewWriter(string(OpEVersion)).PutUint16(v.Major).PutUint16(v.Minor).Bytes()
}

// UnmarshalEIncompatibleVersion parses an EICV payload.
func UnmarshalEIncompatibleVersion(body []byte) (Version, error) {
	r := wire.NewReader(body)
	v := Version{Major: r.Uint16(), Minor: r.Uint16()}
	return v, r.Finish()
}

// Enter carries the destination of a screen switch (§4.6 "CENTER", wire
// opcode CINN).
type Enter struct {
	X, Y      int16
	Seq       uint32
	ToggleMsk uint16
	Saver     bool
}

func (e Enter) Opcode() Opcode { return OpCEnter }

func (e Enter) Marshal() []byte {
	saver := uint8(0)
	if e.Saver {
		saver = 1
	}
	return wire.NewWriter(string(OpCEnter)).
		PutInt16(e.X).PutInt16(e.Y).PutUint32(e.Seq).PutUint16(e.ToggleMsk).PutUint8(saver).Bytes()
}

func UnmarshalEnter(body []byte) (Enter, error) {
	r := wire.NewReader(body)
	e := Enter{
		X:         r.Int16(),
		Y:         r.Int16(),
		Seq:       r.Uint32(),
		ToggleMsk: r.Uint16(),
		Saver:     r.Uint8() != 0,
	}
	return e, r.Finish()
}

// ClipboardGrab announces ownership of a clipboard slot (§4.7, wire opcode
// CCLP).
type ClipboardGrab struct {
	ID  ClipboardID
	Seq uint32
}

func (c ClipboardGrab) Opcode() Opcode { return OpCClip }

func (c ClipboardGrab) Marshal() []byte {
	return wire.NewWriter(string(OpCClip)).PutUint8(uint8(c.ID)).PutUint32(c.Seq).Bytes()
}

func UnmarshalClipboardGrab(body []byte) (ClipboardGrab, error) {
	r := wire.NewReader(body)
	c := ClipboardGrab{ID: ClipboardID(r.Uint8()), Seq: r.Uint32()}
	return c, r.Finish()
}

// ScreensaverToggle is CSEC.
type ScreensaverToggle struct {
	On bool
}

func (s ScreensaverToggle) Opcode() Opcode { return OpCSec }

func (s ScreensaverToggle) Marshal() []byte {
	on := uint8(0)
	if s.On {
		on = 1
	}
	return wire.NewWriter(string(OpCSec)).PutUint8(on).Bytes()
}

func UnmarshalScreensaverToggle(body []byte) (ScreensaverToggle, error) {
	r := wire.NewReader(body)
	s := ScreensaverToggle{On: r.Uint8() != 0}
	return s, r.Finish()
}

// MouseMove is DMMV (absolute).
type MouseMove struct{ X, Y int16 }

func (m MouseMove) Opcode() Opcode { return OpMouseMove }
func (m MouseMove) Marshal() []byte {
	return wire.NewWriter(string(OpMouseMove)).PutInt16(m.X).PutInt16(m.Y).Bytes()
}
func UnmarshalMouseMove(body []byte) (MouseMove, error) {
	r := wire.NewReader(body)
	m := MouseMove{X: r.Int16(), Y: r.Int16()}
	return m, r.Finish()
}

// MouseRelMove is DMRM (relative, used while locked to screen §4.6).
type MouseRelMove struct{ DX, DY int16 }

func (m MouseRelMove) Opcode() Opcode { return OpMouseRel }
func (m MouseRelMove) Marshal() []byte {
	return wire.NewWriter(string(OpMouseRel)).PutInt16(m.DX).PutInt16(m.DY).Bytes()
}
func UnmarshalMouseRelMove(body []byte) (MouseRelMove, error) {
	r := wire.NewReader(body)
	m := MouseRelMove{DX: r.Int16(), DY: r.Int16()}
	return m, r.Finish()
}

// MouseWheel is DMWM.
type MouseWheel struct{ DX, DY int16 }

func (m MouseWheel) Opcode() Opcode { return OpMouseWhl }
func (m MouseWheel) Marshal() []byte {
	return wire.NewWriter(string(OpMouseWhl)).PutInt16(m.DX).PutInt16(m.DY).Bytes()
}
func UnmarshalMouseWheel(body []byte) (MouseWheel, error) {
	r := wire.NewReader(body)
	m := MouseWheel{DX: r.Int16(), DY: r.Int16()}
	return m, r.Finish()
}

// MouseButton is DMDN/DMUP.
type MouseButton struct {
	Down   bool
	Button uint8
}

func (m MouseButton) Opcode() Opcode {
	if m.Down {
		return OpMouseDown
	}
	return OpMouseUp
}
func (m MouseButton) Marshal() []byte {
	return wire.NewWriter(string(m.Opcode())).PutUint8(m.Button).Bytes()
}
func UnmarshalMouseButton(op Opcode, body []byte) (MouseButton, error) {
	r := wire.NewReader(body)
	m := MouseButton{Down: op == OpMouseDown, Button: r.Uint8()}
	return m, r.Finish()
}

// Key is DKDN/DKUP.
type Key struct {
	Down   bool
	KeyID  uint16
	Mask   uint16
	Button uint16
}

func (k Key) Opcode() Opcode {
	if k.Down {
		return OpKeyDown
	}
	return OpKeyUp
}
func (k Key) Marshal() []byte {
	return wire.NewWriter(string(k.Opcode())).PutUint16(k.KeyID).PutUint16(k.Mask).PutUint16(k.Button).Bytes()
}
func UnmarshalKey(op Opcode, body []byte) (Key, error) {
	r := wire.NewReader(body)
	k := Key{Down: op == OpKeyDown, KeyID: r.Uint16(), Mask: r.Uint16(), Button: r.Uint16()}
	return k, r.Finish()
}

// KeyRepeat is DKRP.
type KeyRepeat struct {
	KeyID  uint16
	Mask   uint16
	Count  uint16
	Button uint16
}

func (k KeyRepeat) Opcode() Opcode { return OpKeyRepeat }
func (k KeyRepeat) Marshal() []byte {
	return wire.NewWriter(string(OpKeyRepeat)).PutUint16(k.KeyID).PutUint16(k.Mask).PutUint16(k.Count).PutUint16(k.Button).Bytes()
}
func UnmarshalKeyRepeat(body []byte) (KeyRepeat, error) {
	r := wire.NewReader(body)
	k := KeyRepeat{KeyID: r.Uint16(), Mask: r.Uint16(), Count: r.Uint16(), Button: r.Uint16()}
	return k, r.Finish()
}

// ClientInfo is DINF, the client's reported screen shape and cursor
// position.
type ClientInfo struct {
	X, Y, W, H   int16
	CursorX      int16
	CursorY      int16
}

func (c ClientInfo) Opcode() Opcode { return OpClientInf }
func (c ClientInfo) Marshal() []byte {
	return wire.NewWriter(string(OpClientInf)).
		PutInt16(c.X).PutInt16(c.Y).PutInt16(c.W).PutInt16(c.H).
		PutInt16(0). // unused field per §6.2
		PutInt16(c.CursorX).PutInt16(c.CursorY).Bytes()
}
func UnmarshalClientInfo(body []byte) (ClientInfo, error) {
	r := wire.NewReader(body)
	c := ClientInfo{X: r.Int16(), Y: r.Int16(), W: r.Int16(), H: r.Int16()}
	_ = r.Int16() // unused
	c.CursorX = r.Int16()
	c.CursorY = r.Int16()
	return c, r.Finish()
}

// Options is DSOP, a flat vector of (id, value) pairs (§4.5).
type Options struct {
	Pairs []uint32 // even length: id0, value0, id1, value1, ...
}

func (o Options) Opcode() Opcode { return OpOptions }
func (o Options) Marshal() []byte {
	return wire.NewWriter(string(OpOptions)).PutUint32Vector(o.Pairs).Bytes()
}
func UnmarshalOptions(body []byte) (Options, error) {
	r := wire.NewReader(body)
	o := Options{Pairs: r.Uint32Vector()}
	return o, r.Finish()
}

// ClipboardChunk is DCLP (§4.7, chunked transfer).
type ClipboardChunk struct {
	ID   ClipboardID
	Seq  uint32
	Mark ChunkMark
	Data []byte
}

func (c ClipboardChunk) Opcode() Opcode { return OpClipChunk }
func (c ClipboardChunk) Marshal() []byte {
	return wire.NewWriter(string(OpClipChunk)).
		PutUint8(uint8(c.ID)).PutUint32(c.Seq).PutUint8(uint8(c.Mark)).PutString(string(c.Data)).Bytes()
}
func UnmarshalClipboardChunk(body []byte) (ClipboardChunk, error) {
	r := wire.NewReader(body)
	c := ClipboardChunk{
		ID:   ClipboardID(r.Uint8()),
		Seq:  r.Uint32(),
		Mark: ChunkMark(r.Uint8()),
	}
	c.Data = []byte(r.String())
	return c, r.Finish()
}

// FileChunk is DFTR (§1 scope note: out-of-core file-drop, only the chunk
// framing is implemented here).
type FileChunk struct {
	Mark ChunkMark
	Data string
}

func (f FileChunk) Opcode() Opcode { return OpFileChunk }
func (f FileChunk) Marshal() []byte {
	return wire.NewWriter(string(OpFileChunk)).PutUint8(uint8(f.Mark)).PutString(f.Data).Bytes()
}
func UnmarshalFileChunk(body []byte) (FileChunk, error) {
	r := wire.NewReader(body)
	f := FileChunk{Mark: ChunkMark(r.Uint8())}
	f.Data = r.String()
	return f, r.Finish()
}

// DragInfo is DDRG (out-of-core, kept for wire completeness only).
type DragInfo struct {
	Count uint32
	Info  []byte
}

func (d DragInfo) Opcode() Opcode { return OpDragInfo }
func (d DragInfo) Marshal() []byte {
	return wire.NewWriter(string(OpDragInfo)).PutUint32(d.Count).PutString(string(d.Info)).Bytes()
}
func UnmarshalDragInfo(body []byte) (DragInfo, error) {
	r := wire.NewReader(body)
	d := DragInfo{Count: r.Uint32()}
	d.Info = []byte(r.String())
	return d, r.Finish()
}

// ParseOpcode splits a raw frame into its 4-byte opcode tag and remaining
// body.
func ParseOpcode(frame []byte) (Opcode, []byte, error) {
	if len(frame) < 4 {
		return "", nil, wire.ErrMalformed("frame shorter than opcode")
	}
	return Opcode(frame[:4]), frame[4:], nil
}
