package client

import (
	"errors"
	"fmt"

	"github.com/barriernet/barriernet/internal/proto"
)

// performHandshake drives the client side of §4.3 on c.stream, blocking on
// the Dial goroutine before the reactor takes over. It mirrors
// internal/server.performHandshake's shape from the other end of the same
// exchange: wait for the server's greeting, reply with name and version,
// then answer QINF with this screen's DINF.
func (c *Client) performHandshake() error {
	c.State = proto.StateWaitHello

	frame, err := c.stream.ReadFrame()
	if err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if len(frame) < len(proto.HelloMagic) || string(frame[:len(proto.HelloMagic)]) != proto.HelloMagic {
		return errors.New("hello missing magic")
	}
	serverVersion, err := proto.UnmarshalHelloGreeting(frame[len(proto.HelloMagic):])
	if err != nil {
		return fmt.Errorf("parse hello: %w", err)
	}
	if !proto.NegotiateAsClient(serverVersion) {
		return fmt.Errorf("server version %d.%d too old for this client (%d.%d)",
			serverVersion.Major, serverVersion.Minor, proto.Current.Major, proto.Current.Minor)
	}
	c.Version = serverVersion

	if _, err := c.stream.Write(proto.MarshalHello(proto.Hello{Version: proto.Current, Name: c.name})); err != nil {
		return fmt.Errorf("send hello-back: %w", err)
	}
	c.State = proto.StateWaitCIAK

	for {
		frame, err = c.stream.ReadFrame()
		if err != nil {
			return fmt.Errorf("read post-hello frame: %w", err)
		}
		op, body, err := proto.ParseOpcode(frame)
		if err != nil {
			return err
		}
		switch op {
		case proto.OpCIAK:
			// Acknowledged; wait for QINF next.
			continue
		case proto.OpQueryInf:
			shape := c.secondary.Shape()
			cx, cy := shape.X+shape.W/2, shape.Y+shape.H/2
			info := proto.ClientInfo{
				X: int16(shape.X), Y: int16(shape.Y), W: int16(shape.W), H: int16(shape.H),
				CursorX: int16(cx), CursorY: int16(cy),
			}
			if _, err := c.stream.Write(info.Marshal()); err != nil {
				return fmt.Errorf("send DINF: %w", err)
			}
			c.State = proto.StateActive
			return nil
		case proto.OpEVersion:
			v, _ := proto.UnmarshalEIncompatibleVersion(body)
			return fmt.Errorf("server rejected our version, it speaks %d.%d", v.Major, v.Minor)
		case proto.OpEBad, proto.OpEBusy, proto.OpEUnknown:
			return fmt.Errorf("server closed handshake with %s", op)
		default:
			return fmt.Errorf("unexpected opcode %s during handshake", op)
		}
	}
}
