package filetransfer

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barriernet/barriernet/internal/proto"
)

func TestReceiverRoundTripsChunkedFile(t *testing.T) {
	dir := t.TempDir()
	r := NewReceiver(dir)
	body := []byte("the quick brown fox jumps over the lazy dog")

	for _, chunk := range ChunksForFile(int64(len(body)), body, 7) {
		done, err := r.HandleChunk(chunk)
		require.NoError(t, err)
		if chunk.Mark == proto.ChunkEnd {
			require.NotNil(t, done)
			require.Equal(t, int64(len(body)), done.Size)
			got, err := os.ReadFile(done.Path)
			require.NoError(t, err)
			require.Equal(t, body, got)
		} else {
			require.Nil(t, done)
		}
	}
}

func TestReceiverRejectsChunkWithoutStart(t *testing.T) {
	r := NewReceiver(t.TempDir())
	_, err := r.HandleChunk(proto.FileChunk{Mark: proto.ChunkData, Data: "x"})
	require.ErrorIs(t, err, ErrUnknownTransfer)
}

func TestReceiverRejectsOversizeDeclaration(t *testing.T) {
	r := NewReceiver(t.TempDir())
	_, err := r.HandleChunk(proto.FileChunk{Mark: proto.ChunkStart, Data: "999999999999"})
	require.Error(t, err)
}

func TestReceiverRejectsDataExceedingDeclaredSize(t *testing.T) {
	dir := t.TempDir()
	r := NewReceiver(dir)
	_, err := r.HandleChunk(proto.FileChunk{Mark: proto.ChunkStart, Data: "2"})
	require.NoError(t, err)

	_, err = r.HandleChunk(proto.FileChunk{Mark: proto.ChunkData, Data: "abc"})
	require.Error(t, err)
}

func TestReceiverNewStartAbandonsPriorIncompleteTransfer(t *testing.T) {
	dir := t.TempDir()
	r := NewReceiver(dir)

	_, err := r.HandleChunk(proto.FileChunk{Mark: proto.ChunkStart, Data: "10"})
	require.NoError(t, err)
	_, err = r.HandleChunk(proto.FileChunk{Mark: proto.ChunkData, Data: "abc"})
	require.NoError(t, err)

	// A second start before the first finished should not panic or leak the
	// old file handle; it simply discards the abandoned transfer.
	_, err = r.HandleChunk(proto.FileChunk{Mark: proto.ChunkStart, Data: "5"})
	require.NoError(t, err)
	done, err := r.HandleChunk(proto.FileChunk{Mark: proto.ChunkEnd})
	require.NoError(t, err)
	require.Equal(t, int64(0), done.Size)
}
