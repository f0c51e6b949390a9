package wire

import "fmt"

// Kind classifies a protocol-level failure so the reactor can map it to the
// matching close opcode and log severity (see spec §7).
type Kind int

const (
	// KindFrameTooLong is raised when an incoming frame length exceeds
	// MaxFrameSize.
	KindFrameTooLong Kind = iota
	// KindMalformed is raised when a message's byte count does not match
	// its format string.
	KindMalformed
	// KindUnknownOpcode is raised on an unrecognized opcode during the
	// handshake, before the connection is Active.
	KindUnknownOpcode
	// KindIncompatibleVersion is raised when the peer's protocol version
	// fails the comparison rule in §4.3.
	KindIncompatibleVersion
)

func (k Kind) String() string {
	switch k {
	case KindFrameTooLong:
		return "frame too long"
	case KindMalformed:
		return "malformed message"
	case KindUnknownOpcode:
		return "unknown opcode"
	case KindIncompatibleVersion:
		return "incompatible version"
	default:
		return "protocol error"
	}
}

// Error is the sum type returned by framing and codec operations (§9 design
// note: replaces the source's exception hierarchy XBadClient/XSocket*).
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ErrFrameTooLong reports a frame whose declared length exceeds MaxFrameSize.
func ErrFrameTooLong(n uint32) *Error {
	return newError(KindFrameTooLong, "declared length %d exceeds maximum %d", n, MaxFrameSize)
}

// ErrMalformed reports a message whose encoded bytes do not match its format
// string, either short or with trailing bytes left over.
func ErrMalformed(format string) *Error {
	return newError(KindMalformed, "byte count does not match format %q", format)
}
