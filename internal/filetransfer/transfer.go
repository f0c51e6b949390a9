// Package filetransfer implements the DFTR chunk framing referenced by
// §4.9: file-drop rides on the same chunked-transfer shape as clipboard
// replication (start/data/end marks), but the drag-and-drop UI that would
// normally drive it is out of scope. It provides the receive side
// (Receiver) and the send-side chunking (ChunksForFile); its tests drive
// these directly, not through the wire codec or the reactor.
package filetransfer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/barriernet/barriernet/internal/logging"
	"github.com/barriernet/barriernet/internal/proto"
)

var log = logging.L("filetransfer")

// MaxTransferSize bounds an incoming transfer the way clipboard pushes are
// bounded, preventing a peer from exhausting disk with a single drop.
const MaxTransferSize = 500 * 1024 * 1024

// ErrUnknownTransfer is returned when a data or end chunk arrives with no
// matching in-flight start.
var ErrUnknownTransfer = errors.New("filetransfer: no transfer in flight")

// Received describes a file-drop transfer that completed successfully.
type Received struct {
	Path string
	Size int64
}

// incomingTransfer accumulates a single file-drop transfer to disk,
// grounded on the teacher's incomingTransfer (filedrop/handler.go), adapted
// from WebRTC data-channel offsets to the sequential DFTR chunk stream (no
// per-chunk offset on the wire, so chunks are applied in arrival order).
type incomingTransfer struct {
	size     int64
	received int64
	file     *os.File
	path     string
}

// Receiver accepts a single connection's DFTR chunk stream at a time,
// matching the wire protocol's lack of a transfer id: only one file-drop
// transfer can be in flight per connection.
type Receiver struct {
	dir     string
	current *incomingTransfer
}

// NewReceiver creates a Receiver that writes completed transfers under dir.
func NewReceiver(dir string) *Receiver {
	return &Receiver{dir: dir}
}

// HandleChunk applies one DFTR frame to the in-flight transfer, returning a
// non-nil Received once ChunkEnd closes it out.
func (r *Receiver) HandleChunk(chunk proto.FileChunk) (*Received, error) {
	switch chunk.Mark {
	case proto.ChunkStart:
		return nil, r.start(chunk.Data)
	case proto.ChunkData:
		return nil, r.append(chunk.Data)
	case proto.ChunkEnd:
		return r.finish()
	default:
		return nil, fmt.Errorf("filetransfer: unknown chunk mark %d", chunk.Mark)
	}
}

// start begins a new transfer. Per the wire format the start chunk's data
// is the decimal file size; the destination filename is generated locally
// (the protocol carries no filename field), sidestepping path traversal
// entirely rather than trusting a peer-supplied name.
func (r *Receiver) start(data string) error {
	if r.current != nil {
		_ = r.current.file.Close()
		_ = os.Remove(r.current.path)
		r.current = nil
	}

	size, err := strconv.ParseInt(strings.TrimSpace(data), 10, 64)
	if err != nil {
		return fmt.Errorf("filetransfer: start chunk size %q: %w", data, err)
	}
	if size < 0 || size > MaxTransferSize {
		return fmt.Errorf("filetransfer: declared size %d exceeds maximum %d", size, MaxTransferSize)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("filetransfer: create receive dir: %w", err)
	}

	name := uuid.NewString() + ".drop"
	path := filepath.Join(r.dir, name)
	if !isWithinDir(r.dir, path) {
		return fmt.Errorf("filetransfer: generated path %q escapes receive dir", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("filetransfer: create %s: %w", path, err)
	}

	r.current = &incomingTransfer{size: size, file: f, path: path}
	log.Info("file-drop started", "path", path, "size", size)
	return nil
}

func (r *Receiver) append(data string) error {
	if r.current == nil {
		return ErrUnknownTransfer
	}
	t := r.current
	if t.received+int64(len(data)) > t.size {
		return fmt.Errorf("filetransfer: received data exceeds declared size %d", t.size)
	}
	if _, err := t.file.WriteAt([]byte(data), t.received); err != nil {
		return err
	}
	t.received += int64(len(data))
	return nil
}

func (r *Receiver) finish() (*Received, error) {
	if r.current == nil {
		return nil, ErrUnknownTransfer
	}
	t := r.current
	r.current = nil

	if err := t.file.Close(); err != nil {
		return nil, err
	}
	log.Info("file-drop complete", "path", t.path, "size", t.received)
	return &Received{Path: t.path, Size: t.received}, nil
}

func isWithinDir(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(absPath, absDir+string(filepath.Separator))
}

// ChunksForFile splits a local file's bytes into the DFTR start/data/end
// sequence a sender would emit (§4.9), using the given chunk size.
func ChunksForFile(size int64, body []byte, chunkSize int) []proto.FileChunk {
	chunks := []proto.FileChunk{{Mark: proto.ChunkStart, Data: strconv.FormatInt(size, 10)}}
	for off := 0; off < len(body); off += chunkSize {
		end := off + chunkSize
		if end > len(body) {
			end = len(body)
		}
		chunks = append(chunks, proto.FileChunk{Mark: proto.ChunkData, Data: string(body[off:end])})
	}
	chunks = append(chunks, proto.FileChunk{Mark: proto.ChunkEnd})
	return chunks
}
