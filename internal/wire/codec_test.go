package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecRoundTripScalarFields(t *testing.T) {
	w := NewWriter("TEST")
	w.PutUint16(1).PutUint16(6).PutInt32(-42).PutString("office-left")

	body := w.Bytes()
	require.Equal(t, "TEST", string(body[:4]))

	r := NewReader(body[4:])
	major := r.Uint16()
	minor := r.Uint16()
	seq := r.Int32()
	name := r.String()
	require.NoError(t, r.Finish())

	require.Equal(t, uint16(1), major)
	require.Equal(t, uint16(6), minor)
	require.Equal(t, int32(-42), seq)
	require.Equal(t, "office-left", name)
}

func TestCodecRoundTripVectorField(t *testing.T) {
	w := NewWriter("DSOP")
	options := []uint32{1, 0, 2, 1}
	w.PutUint32Vector(options)

	r := NewReader(w.Bytes()[4:])
	got := r.Uint32Vector()
	require.NoError(t, r.Finish())
	require.Equal(t, options, got)
}

func TestCodecDetectsShortRead(t *testing.T) {
	w := NewWriter("DINF")
	w.PutUint16(100).PutUint16(200)

	// Declare a format expecting 4 fields, but only 2 were written: the
	// third read should fail with Malformed, not panic or return garbage.
	r := NewReader(w.Bytes()[4:])
	r.Uint16()
	r.Uint16()
	r.Uint16() // underflow: nothing left to read
	require.Error(t, r.Finish())

	var wireErr *Error
	require.ErrorAs(t, r.Finish(), &wireErr)
	require.Equal(t, KindMalformed, wireErr.Kind)
}

func TestCodecDetectsTrailingBytes(t *testing.T) {
	w := NewWriter("CALV")
	w.PutUint16(1)

	r := NewReader(w.Bytes()[4:])
	// Consume nothing, leaving 2 bytes trailing.
	err := r.Finish()
	require.Error(t, err)
}
