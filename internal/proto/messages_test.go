package proto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHelloRoundTrip(t *testing.T) {
	body := MarshalHello(Hello{Version: Version{Major: 1, Minor: 6}, Name: "laptop"})
	require.Equal(t, HelloMagic, string(body[:len(HelloMagic)]))

	h, err := UnmarshalHelloBack(body[len(HelloMagic):])
	require.NoError(t, err)
	require.Equal(t, Version{Major: 1, Minor: 6}, h.Version)
	require.Equal(t, "laptop", h.Name)
}

func TestHelloGreetingHasNoName(t *testing.T) {
	body := MarshalHello(Hello{Version: Current})
	v, err := UnmarshalHelloGreeting(body[len(HelloMagic):])
	require.NoError(t, err)
	require.Equal(t, Current, v)
}

func TestEnterRoundTrip(t *testing.T) {
	e := Enter{X: 100, Y: -5, Seq: 42, ToggleMsk: 0x3, Saver: true}
	op, body, err := ParseOpcode(e.Marshal())
	require.NoError(t, err)
	require.Equal(t, OpCEnter, op)

	got, err := UnmarshalEnter(body)
	require.NoError(t, err)
	require.Equal(t, e, got)
}

func TestClipboardGrabRoundTrip(t *testing.T) {
	c := ClipboardGrab{ID: ClipboardGeneral, Seq: 7}
	_, body, err := ParseOpcode(c.Marshal())
	require.NoError(t, err)
	got, err := UnmarshalClipboardGrab(body)
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestMouseButtonOpcodeSelection(t *testing.T) {
	down := MouseButton{Down: true, Button: 1}
	require.Equal(t, OpMouseDown, down.Opcode())

	up := MouseButton{Down: false, Button: 1}
	require.Equal(t, OpMouseUp, up.Opcode())

	_, body, err := ParseOpcode(up.Marshal())
	require.NoError(t, err)
	got, err := UnmarshalMouseButton(OpMouseUp, body)
	require.NoError(t, err)
	require.Equal(t, up, got)
}

func TestKeyRoundTrip(t *testing.T) {
	k := Key{Down: true, KeyID: 65, Mask: 0x1, Button: 30}
	_, body, err := ParseOpcode(k.Marshal())
	require.NoError(t, err)
	got, err := UnmarshalKey(OpKeyDown, body)
	require.NoError(t, err)
	require.Equal(t, k, got)
}

func TestClipboardChunkRoundTrip(t *testing.T) {
	c := ClipboardChunk{ID: ClipboardSelection, Seq: 3, Mark: ChunkData, Data: []byte("hello")}
	_, body, err := ParseOpcode(c.Marshal())
	require.NoError(t, err)
	got, err := UnmarshalClipboardChunk(body)
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestOptionsRoundTrip(t *testing.T) {
	o := Options{Pairs: []uint32{1, 0, 2, 1}}
	_, body, err := ParseOpcode(o.Marshal())
	require.NoError(t, err)
	got, err := UnmarshalOptions(body)
	require.NoError(t, err)
	require.Equal(t, o, got)
}

func TestNegotiateAsServerAcceptsNewerClient(t *testing.T) {
	ok, closeFrame := NegotiateAsServer(Version{Major: Current.Major, Minor: Current.Minor + 1})
	require.True(t, ok)
	require.Nil(t, closeFrame)
}

func TestNegotiateAsServerRejectsOlderClient(t *testing.T) {
	ok, closeFrame := NegotiateAsServer(Version{Major: Current.Major - 1, Minor: 0})
	require.False(t, ok)
	require.NotNil(t, closeFrame)

	op, body, err := ParseOpcode(closeFrame)
	require.NoError(t, err)
	require.Equal(t, OpEVersion, op)

	v, err := UnmarshalEIncompatibleVersion(body)
	require.NoError(t, err)
	require.Equal(t, Current, v)
}

func TestNegotiateAsClientRejectsOlderServer(t *testing.T) {
	require.False(t, NegotiateAsClient(Version{Major: 0, Minor: 1}))
	require.True(t, NegotiateAsClient(Current))
}
