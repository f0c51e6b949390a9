package wire

import (
	"encoding/binary"
)

// Writer accumulates a message body using the atomic field types of §4.2.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with the 4-byte opcode pre-written.
func NewWriter(opcode string) *Writer {
	w := &Writer{buf: make([]byte, 0, 32)}
	w.buf = append(w.buf, []byte(opcode)...)
	return w
}

// Bytes returns the accumulated message, opcode included.
func (w *Writer) Bytes() []byte { return w.buf }

// PutUint8 writes a %1i field.
func (w *Writer) PutUint8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

// PutUint16 writes a %2i field.
func (w *Writer) PutUint16(v uint16) *Writer {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

// PutUint32 writes a %4i field.
func (w *Writer) PutUint32(v uint32) *Writer {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

// PutInt32 writes a %4i field interpreted as signed.
func (w *Writer) PutInt32(v int32) *Writer { return w.PutUint32(uint32(v)) }

// PutInt16 writes a %2i field interpreted as signed.
func (w *Writer) PutInt16(v int16) *Writer { return w.PutUint16(uint16(v)) }

// PutString writes a %s field: 4-byte length then the bytes.
func (w *Writer) PutString(s string) *Writer {
	w.PutUint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
	return w
}

// PutBytes writes an %S field: the raw bytes with an explicit length
// supplied separately by the caller (no length prefix of its own beyond
// what PutUint32 already wrote for the count argument).
func (w *Writer) PutBytes(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// PutUint8Vector writes a %1I field: a 4-byte count then that many 1-byte
// values.
func (w *Writer) PutUint8Vector(v []uint8) *Writer {
	w.PutUint32(uint32(len(v)))
	w.buf = append(w.buf, v...)
	return w
}

// PutUint16Vector writes a %2I field.
func (w *Writer) PutUint16Vector(v []uint16) *Writer {
	w.PutUint32(uint32(len(v)))
	for _, x := range v {
		w.PutUint16(x)
	}
	return w
}

// PutUint32Vector writes a %4I field.
func (w *Writer) PutUint32Vector(v []uint32) *Writer {
	w.PutUint32(uint32(len(v)))
	for _, x := range v {
		w.PutUint32(x)
	}
	return w
}

// Reader parses a message body following the same format codes.
type Reader struct {
	buf []byte
	pos int
	err error
}

// NewReader wraps a full frame payload (opcode already consumed by the
// caller via proto.ParseOpcode) for field-by-field decoding.
func NewReader(body []byte) *Reader {
	return &Reader{buf: body}
}

// Err returns the first decoding error encountered, if any. Once set, all
// further reads are no-ops returning zero values, so callers can chain reads
// and check Err once at the end.
func (r *Reader) Err() error { return r.err }

func (r *Reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.buf) {
		r.err = ErrMalformed("short read")
		return false
	}
	return true
}

// Uint8 reads a %1i field.
func (r *Reader) Uint8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return v
}

// Uint16 reads a %2i field.
func (r *Reader) Uint16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

// Uint32 reads a %4i field.
func (r *Reader) Uint32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

// Int16 reads a %2i field interpreted as signed.
func (r *Reader) Int16() int16 { return int16(r.Uint16()) }

// Int32 reads a %4i field interpreted as signed.
func (r *Reader) Int32() int32 { return int32(r.Uint32()) }

// String reads a %s field: a 4-byte length then that many bytes.
func (r *Reader) String() string {
	n := r.Uint32()
	if r.err != nil || !r.need(int(n)) {
		return ""
	}
	v := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return v
}

// Bytes reads an %S field of exactly n bytes.
func (r *Reader) Bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	v := make([]byte, n)
	copy(v, r.buf[r.pos:r.pos+n])
	r.pos += n
	return v
}

// Uint8Vector reads a %1I field.
func (r *Reader) Uint8Vector() []uint8 {
	n := r.Uint32()
	if r.err != nil || !r.need(int(n)) {
		return nil
	}
	v := make([]uint8, n)
	copy(v, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return v
}

// Uint16Vector reads a %2I field.
func (r *Reader) Uint16Vector() []uint16 {
	n := r.Uint32()
	if r.err != nil {
		return nil
	}
	v := make([]uint16, n)
	for i := range v {
		v[i] = r.Uint16()
	}
	return v
}

// Uint32Vector reads a %4I field.
func (r *Reader) Uint32Vector() []uint32 {
	n := r.Uint32()
	if r.err != nil {
		return nil
	}
	v := make([]uint32, n)
	for i := range v {
		v[i] = r.Uint32()
	}
	return v
}

// Remaining reports how many unread bytes remain in the body. A message
// whose format string has been fully consumed but leaves trailing bytes is
// malformed per §4.2 ("reading fewer or more bytes than specified is a
// fatal ProtocolError::Malformed").
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// Finish checks that the whole body was consumed, returning ErrMalformed if
// bytes remain or a prior read underflowed.
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}
	if r.Remaining() != 0 {
		return ErrMalformed("trailing bytes")
	}
	return nil
}
