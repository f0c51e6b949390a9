package proto

// State is a connection's position in the handshake state machine (§4.3).
type State int

const (
	// StateConnecting is the state right after the TCP/TLS connection is
	// accepted, before any bytes have been exchanged.
	StateConnecting State = iota
	// StateWaitHello is the client state after opening a connection,
	// waiting for the server's "Barrier" greeting.
	StateWaitHello
	// StateWaitHelloBack is the server state after sending its greeting,
	// waiting for the client's name and version reply.
	StateWaitHelloBack
	// StateWaitCIAK is the client state after replying to the greeting,
	// waiting for the server's ack before leaving handshake.
	StateWaitCIAK
	// StateActive is the steady state: the connection accepts the full
	// opcode table.
	StateActive
	// StateClosed is terminal; no further frames are processed.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateWaitHello:
		return "wait-hello"
	case StateWaitHelloBack:
		return "wait-hello-back"
	case StateWaitCIAK:
		return "wait-ciak"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// NegotiateAsServer checks a client's offered version against the server's
// own, per §4.3: the server accepts any client whose version it is
// Compatible with and otherwise must close with EICV carrying its own
// version.
func NegotiateAsServer(clientVersion Version) (ok bool, closeFrame []byte) {
	if Compatible(Current, clientVersion) {
		return true, nil
	}
	return false, EIncompatibleVersion(Current)
}

// NegotiateAsClient checks the server's greeting version against the
// client's own. A client that finds the server too old abandons the
// handshake rather than sending EICV itself, since only the server emits
// that opcode (§4.3).
func NegotiateAsClient(serverVersion Version) bool {
	return Compatible(Current, serverVersion)
}
