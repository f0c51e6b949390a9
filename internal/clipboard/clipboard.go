// Package clipboard implements the replication engine of spec §4.7: a
// single owning connection per ClipboardID, chunked transfer to the active
// screen, and the marshalled clipboard wire format.
package clipboard

import (
	"encoding/binary"
	"fmt"

	"github.com/barriernet/barriernet/internal/logging"
	"github.com/barriernet/barriernet/internal/proto"
)

var log = logging.L("clipboard")

// DefaultSharingSize is the default clipboard_sharing_size limit (§4.7):
// transfers above this are skipped with a warning.
const DefaultSharingSize = 100 * 1024 * 1024

// Format is one entry of the marshalled clipboard blob.
type Format struct {
	ID   uint32
	Data []byte
}

// Marshal encodes formats per §4.7's wire layout: u32 count then, for each
// entry, u32 format id, u32 size, and the raw bytes.
func Marshal(formats []Format) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, uint32(len(formats)))
	for _, f := range formats {
		var head [8]byte
		binary.BigEndian.PutUint32(head[0:4], f.ID)
		binary.BigEndian.PutUint32(head[4:8], uint32(len(f.Data)))
		out = append(out, head[:]...)
		out = append(out, f.Data...)
	}
	return out
}

// Unmarshal decodes the marshalled clipboard blob. Trailing bytes beyond a
// truncated entry are an error; unknown format ids are kept (the receiver,
// not this decoder, discards them per §4.7 since the format registry is a
// higher layer's concern).
func Unmarshal(blob []byte) ([]Format, error) {
	if len(blob) < 4 {
		return nil, fmt.Errorf("clipboard: blob shorter than count header")
	}
	n := binary.BigEndian.Uint32(blob)
	pos := 4
	formats := make([]Format, 0, n)
	for i := uint32(0); i < n; i++ {
		if pos+8 > len(blob) {
			return nil, fmt.Errorf("clipboard: truncated entry header")
		}
		id := binary.BigEndian.Uint32(blob[pos : pos+4])
		size := binary.BigEndian.Uint32(blob[pos+4 : pos+8])
		pos += 8
		if pos+int(size) > len(blob) {
			return nil, fmt.Errorf("clipboard: truncated entry data")
		}
		formats = append(formats, Format{ID: id, Data: blob[pos : pos+int(size)]})
		pos += int(size)
	}
	return formats, nil
}

// Slot holds one ClipboardID's current content and ownership state,
// shared across every connection (§3: "exactly one owner per slot at all
// times").
type Slot struct {
	Owner string // connection id of the owning connection, "" if unowned
	Seq   uint32
	Blob  []byte
}

// ConnState is the per-(connection, ClipboardID) replication bookkeeping of
// §4.7: own, sent, last_seq.
type ConnState struct {
	Own     bool
	Sent    bool
	LastSeq uint32
}

// Engine tracks clipboard ownership across every connection for both
// ClipboardID slots (§4.7). It is exercised only from the reactor
// goroutine, matching §5's "clipboard slots are mutated only from the
// reactor thread" — so it needs no internal locking.
type Engine struct {
	slots [2]Slot
	conns map[string][2]*ConnState
	limit int
}

// NewEngine creates an Engine with DefaultSharingSize as its transfer
// limit.
func NewEngine() *Engine {
	return &Engine{
		conns: make(map[string][2]*ConnState),
		limit: DefaultSharingSize,
	}
}

// SetSharingLimit overrides the default clipboard_sharing_size.
func (e *Engine) SetSharingLimit(n int) {
	e.limit = n
}

// Register adds bookkeeping for a newly active connection.
func (e *Engine) Register(connID string) {
	e.conns[connID] = [2]*ConnState{{}, {}}
}

// Unregister drops a connection's bookkeeping, e.g. on disconnect. If it
// owned a slot, the slot is left owned by the now-gone connection until the
// next grab; callers that need to clear stale ownership should check
// Slot.Owner against their live connection set.
func (e *Engine) Unregister(connID string) {
	delete(e.conns, connID)
}

// Grab processes a CCLP grab from connID for id with the given sequence
// number. It returns true if the grab was accepted (seq > slot's current
// seq), at which point the caller must forward CCLP to every other
// connection (§4.7) and this Engine has already cleared their `sent` flags.
func (e *Engine) Grab(connID string, id proto.ClipboardID, seq uint32) bool {
	slot := &e.slots[id]
	if seq <= slot.Seq && slot.Owner != "" {
		return false
	}
	slot.Owner = connID
	slot.Seq = seq

	for otherID, states := range e.conns {
		if otherID == connID {
			states[id].Own = true
			states[id].LastSeq = seq
			continue
		}
		states[id].Own = false
		states[id].Sent = false
	}
	return true
}

// SetContent stores the marshalled content most recently grabbed for id,
// called once the owning connection's clipboard bytes are known (e.g. the
// server's own locally-grabbed clipboard, or a client's relayed grab).
func (e *Engine) SetContent(id proto.ClipboardID, blob []byte) {
	e.slots[id].Blob = blob
}

// Slot returns a copy of a clipboard slot's current state.
func (e *Engine) Slot(id proto.ClipboardID) Slot {
	return e.slots[id]
}

// PushTarget decides whether target should receive a chunked push of id's
// content: it must not already have it (Sent == false) and the blob must be
// non-empty and within the sharing limit. On reporting true the caller is
// expected to send the DCLP chunk sequence and then call MarkSent.
func (e *Engine) PushTarget(target string, id proto.ClipboardID) (blob []byte, ok bool) {
	slot := e.slots[id]
	if len(slot.Blob) == 0 {
		return nil, false
	}
	if len(slot.Blob) > e.limit {
		log.Warn("clipboard transfer skipped, exceeds sharing size limit",
			"clipboardId", id, "size", len(slot.Blob), "limit", e.limit)
		return nil, false
	}
	states, ok := e.conns[target]
	if !ok || states[id].Sent {
		return nil, false
	}
	return slot.Blob, true
}

// MarkSent records that target has received the current content of id.
func (e *Engine) MarkSent(target string, id proto.ClipboardID) {
	if states, ok := e.conns[target]; ok {
		states[id].Sent = true
	}
}

// ChunksFor splits blob into DCLP-ready chunks of at most chunkSize bytes,
// tagged start/data/end (§4.7: "chunked DCLP (start/data/end)").
func ChunksFor(id proto.ClipboardID, seq uint32, blob []byte, chunkSize int) []proto.ClipboardChunk {
	if chunkSize <= 0 {
		chunkSize = 4096
	}
	chunks := []proto.ClipboardChunk{{ID: id, Seq: seq, Mark: proto.ChunkStart}}
	for i := 0; i < len(blob); i += chunkSize {
		end := i + chunkSize
		if end > len(blob) {
			end = len(blob)
		}
		chunks = append(chunks, proto.ClipboardChunk{ID: id, Seq: seq, Mark: proto.ChunkData, Data: blob[i:end]})
	}
	chunks = append(chunks, proto.ClipboardChunk{ID: id, Seq: seq, Mark: proto.ChunkEnd})
	return chunks
}

// Reassembler accumulates incoming DCLP chunks into a complete blob.
type Reassembler struct {
	buf []byte
}

// Add processes one chunk, returning the completed blob and true once a
// ChunkEnd is received.
func (r *Reassembler) Add(c proto.ClipboardChunk) ([]byte, bool) {
	switch c.Mark {
	case proto.ChunkStart:
		r.buf = r.buf[:0]
	case proto.ChunkData:
		r.buf = append(r.buf, c.Data...)
	case proto.ChunkEnd:
		blob := make([]byte, len(r.buf))
		copy(blob, r.buf)
		r.buf = r.buf[:0]
		return blob, true
	}
	return nil, false
}
