package client

import (
	"github.com/barriernet/barriernet/internal/filetransfer"
	"github.com/barriernet/barriernet/internal/proto"
)

// frameEvent carries one already-framed payload from the reader goroutine
// to the reactor, mirroring internal/server's frameEvent.
type frameEvent struct{ frame []byte }

// connClosedEvent announces that the reader goroutine observed EOF or an
// error and has stopped.
type connClosedEvent struct{ err error }

// localClipboardEvent fires when the local screen's own OS clipboard
// changes owner, prompting a grab to be relayed to the server (§4.7).
type localClipboardEvent struct{ id proto.ClipboardID }

type keepAliveFlatlineEvent struct{}

type calvTickEvent struct{}

// fileChunkResultEvent carries a completed or failed DFTR transfer back
// from the worker pool to the reactor goroutine, the same ambient-pool
// shape internal/server uses (§5 "ambient worker pool").
type fileChunkResultEvent struct {
	result *filetransfer.Received
	err    error
}

// clipboardReadResultEvent carries the result of reading the local
// clipboard off the reactor goroutine, so a slow OS clipboard call never
// blocks frame dispatch.
type clipboardReadResultEvent struct {
	id   proto.ClipboardID
	seq  uint32
	blob []byte
	err  error
}
