package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// pipe is a simple in-memory io.ReadWriter connecting a write buffer to a
// read buffer, standing in for a net.Conn in framing tests.
type pipe struct {
	buf bytes.Buffer
}

func (p *pipe) Read(b []byte) (int, error)  { return p.buf.Read(b) }
func (p *pipe) Write(b []byte) (int, error) { return p.buf.Write(b) }

func TestFramingRoundTrip(t *testing.T) {
	p := &pipe{}
	s := NewStream(p)

	msg := []byte("hello, barrier")
	_, err := s.Write(msg)
	require.NoError(t, err)

	require.True(t, s.IsReady())
	require.Equal(t, len(msg), s.Size())

	out := make([]byte, len(msg))
	n, err := s.Read(out)
	require.NoError(t, err)
	require.Equal(t, len(msg), n)
	require.Equal(t, msg, out)
}

func TestFramingBackToBackWritesStayIndependent(t *testing.T) {
	p := &pipe{}
	s := NewStream(p)

	first := []byte("first frame")
	second := []byte("second frame, longer")

	_, err := s.Write(first)
	require.NoError(t, err)
	_, err = s.Write(second)
	require.NoError(t, err)

	out1 := make([]byte, len(first)+len(second))
	n1, err := s.Read(out1)
	require.NoError(t, err)
	require.Equal(t, len(first), n1, "first Read must not spill into the second frame")
	require.Equal(t, first, out1[:n1])

	out2 := make([]byte, len(second))
	n2, err := s.Read(out2)
	require.NoError(t, err)
	require.Equal(t, len(second), n2)
	require.Equal(t, second, out2[:n2])
}

func TestFramingNotReadyWithoutWholeFrame(t *testing.T) {
	p := &pipe{}
	s := NewStream(p)

	// Write a length header for a 10-byte frame but only 4 bytes of payload.
	p.buf.Write([]byte{0, 0, 0, 10})
	p.buf.Write([]byte("abcd"))

	require.False(t, s.IsReady())
	require.Equal(t, 0, s.Size())
}

func TestFramingRejectsOversizeFrame(t *testing.T) {
	p := &pipe{}
	s := NewStream(p)

	oversize := make([]byte, MaxFrameSize+1)
	_, err := s.Write(oversize)
	require.Error(t, err)

	var wireErr *Error
	require.ErrorAs(t, err, &wireErr)
	require.Equal(t, KindFrameTooLong, wireErr.Kind)
}
