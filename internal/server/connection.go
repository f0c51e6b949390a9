// Package server implements the server engine of spec §4.6: it accepts
// client connections, runs the handshake and keep-alive state machines per
// connection, drives the switching and clipboard engines, and routes input
// to whichever screen is currently active.
package server

import (
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/barriernet/barriernet/internal/clipboard"
	"github.com/barriernet/barriernet/internal/logging"
	"github.com/barriernet/barriernet/internal/modifiers"
	"github.com/barriernet/barriernet/internal/proto"
	"github.com/barriernet/barriernet/internal/reactor"
	"github.com/barriernet/barriernet/internal/screen"
	"github.com/barriernet/barriernet/internal/wire"
)

var log = logging.L("server")

// ConnectionID uniquely identifies one client connection for the lifetime
// of the process.
type ConnectionID string

func newConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

// Connection is one client's framed stream plus its handshake and
// keep-alive state (spec §3 "Connection"). performHandshake runs on the
// connection's own goroutine before the reactor takes ownership: it fills
// in the handshake fields (State, Version, Name) and writes the handshake
// frames itself. After that, the reactor goroutine owns the fields, while
// the connection's reader goroutine keeps reading frames from stream.
type Connection struct {
	ID     ConnectionID
	Name   screen.Name
	stream *wire.Stream
	conn   net.Conn

	State   proto.State
	Version proto.Version

	Modifiers *modifiers.Table

	keepAliveTimer reactor.TimerID
	hasKeepAlive   bool
	calvTimer      reactor.TimerID // periodic outbound CALV (§4.4)
	hasCalvTimer   bool
	lockedToScreen bool
	enterSeqOfLast uint32

	// reasm holds the per-(connection, clipboard-slot) inbound chunk
	// reassembly state: a grabbing client proactively streams its content
	// back as DCLP chunks rather than waiting to be asked (§4.7).
	reasm [2]clipboard.Reassembler
}

func newConnection(conn net.Conn) *Connection {
	return &Connection{
		ID:        newConnectionID(),
		stream:    wire.NewStream(conn),
		conn:      conn,
		State:     proto.StateConnecting,
		Modifiers: modifiers.NewTable(),
	}
}

// Send frames and writes msg, followed by a CNOP per §4.4 ("explicitly
// added after every processed application message, to force a write that
// defeats delayed-ACK stalls").
func (c *Connection) Send(msg proto.Message) error {
	if _, err := c.stream.Write(msg.Marshal()); err != nil {
		return fmt.Errorf("send %s to %s: %w", msg.Opcode(), c.Name, err)
	}
	_, err := c.stream.Write(proto.Simple(proto.OpCNOP))
	return err
}

// SendRaw writes a pre-marshalled frame (opcode-only messages, handshake
// replies) without the trailing CNOP, used during handshake before the
// connection is Active.
func (c *Connection) SendRaw(frame []byte) error {
	_, err := c.stream.Write(frame)
	return err
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the peer's network address, for logging.
func (c *Connection) RemoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}
