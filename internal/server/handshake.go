package server

import (
	"errors"
	"fmt"

	"github.com/barriernet/barriernet/internal/proto"
	"github.com/barriernet/barriernet/internal/screen"
)

// performHandshake drives the server side of §4.3's handshake on c's raw
// stream, blocking on the connection's own goroutine (the reactor is not
// yet involved except for the single synchronous claimName round trip).
// It returns the client's reported screen shape from its DINF reply.
//
// c.State borrows StateWaitCIAK for the final leg of this function: once
// CIAK has been sent, the state stands for "waiting on the client's DINF
// reply to QINF" rather than the client-side meaning the same constant
// carries in internal/client (both legs of the handshake share an enum
// rather than each defining their own four-state subset of it).
func (s *Server) performHandshake(c *Connection) (proto.ClientInfo, error) {
	c.State = proto.StateWaitHelloBack
	if _, err := c.stream.Write(proto.MarshalHello(proto.Hello{Version: proto.Current})); err != nil {
		return proto.ClientInfo{}, fmt.Errorf("send greeting: %w", err)
	}

	frame, err := c.stream.ReadFrame()
	if err != nil {
		return proto.ClientInfo{}, fmt.Errorf("read hello-back: %w", err)
	}
	if len(frame) < len(proto.HelloMagic) || string(frame[:len(proto.HelloMagic)]) != proto.HelloMagic {
		return proto.ClientInfo{}, errors.New("hello-back missing magic")
	}
	hello, err := proto.UnmarshalHelloBack(frame[len(proto.HelloMagic):])
	if err != nil {
		return proto.ClientInfo{}, fmt.Errorf("parse hello-back: %w", err)
	}

	if ok, closeFrame := proto.NegotiateAsServer(hello.Version); !ok {
		_ = c.SendRaw(closeFrame)
		return proto.ClientInfo{}, fmt.Errorf("incompatible client version %d.%d", hello.Version.Major, hello.Version.Minor)
	}
	c.Version = hello.Version
	c.Name = screen.Name(hello.Name)

	result, err := s.claimName(c, c.Name)
	if err != nil {
		return proto.ClientInfo{}, err
	}
	switch result {
	case claimBusy:
		_ = c.SendRaw(proto.Simple(proto.OpEBusy))
		return proto.ClientInfo{}, fmt.Errorf("screen name %q already connected", c.Name)
	case claimUnknown:
		_ = c.SendRaw(proto.Simple(proto.OpEUnknown))
		return proto.ClientInfo{}, fmt.Errorf("screen name %q not declared in topology", c.Name)
	}

	if err := c.SendRaw(proto.Simple(proto.OpCIAK)); err != nil {
		return proto.ClientInfo{}, fmt.Errorf("send CIAK: %w", err)
	}
	c.State = proto.StateWaitCIAK

	if err := c.SendRaw(proto.Simple(proto.OpQueryInf)); err != nil {
		return proto.ClientInfo{}, fmt.Errorf("send QINF: %w", err)
	}

	frame, err = c.stream.ReadFrame()
	if err != nil {
		return proto.ClientInfo{}, fmt.Errorf("read DINF: %w", err)
	}
	op, body, err := proto.ParseOpcode(frame)
	if err != nil {
		return proto.ClientInfo{}, err
	}
	if op != proto.OpClientInf {
		return proto.ClientInfo{}, fmt.Errorf("expected DINF, got %s", op)
	}
	info, err := proto.UnmarshalClientInfo(body)
	if err != nil {
		return proto.ClientInfo{}, fmt.Errorf("parse DINF: %w", err)
	}
	return info, nil
}

// claimName asks the reactor to atomically check and reserve name, the one
// synchronous bridge between a handshake goroutine and the reactor's
// exclusively-owned Registry (§5).
func (s *Server) claimName(c *Connection, name screen.Name) (nameClaimResult, error) {
	reply := make(chan nameClaimResult, 1)
	if !s.rx.Post(nameClaimEvent{conn: c, name: name, reply: reply}) {
		return claimUnknown, errors.New("server is shutting down")
	}
	return <-reply, nil
}
