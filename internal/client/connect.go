package client

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"github.com/barriernet/barriernet/internal/config"
	"github.com/barriernet/barriernet/internal/transport"
	"github.com/barriernet/barriernet/pkg/screens"
)

// reconnectDelay is how long Connect waits after a failed or dropped
// connection before dialing again (§5 "Client connect: 15s before retry").
const reconnectDelay = 15 * time.Second

// Options bundles everything Connect needs to dial and run a Client
// across reconnects.
type Options struct {
	Address    string
	Name       string
	Secondary  screens.SecondaryScreen
	Config     *config.Config
	FileDir    string
	Cert       tls.Certificate
	Verify     transport.TrustVerifier
	OnConnect  func(*Client)
}

// Connect dials opts.Address, runs a Client to completion, and keeps
// retrying every reconnectDelay until ctx is cancelled, matching the
// daemon-level retry loop the spec's NetworkError handling implies (§7
// "ClientConnectionFailed{retry: true}... schedules a reconnect").
func Connect(ctx context.Context, opts Options) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := dial(ctx, opts)
		if err != nil {
			log.Warn("connect failed, will retry", "address", opts.Address, "error", err, "retryIn", reconnectDelay)
			if !sleepOrDone(ctx, reconnectDelay) {
				return ctx.Err()
			}
			continue
		}

		c := NewClient(conn, opts.Name, opts.Secondary, opts.Config, opts.FileDir)
		if opts.OnConnect != nil {
			opts.OnConnect(c)
		}
		err = c.Run(ctx)
		if err != nil && errors.Is(err, context.Canceled) {
			return err
		}
		log.Warn("disconnected from server, will retry", "address", opts.Address, "error", err, "retryIn", reconnectDelay)
		if !sleepOrDone(ctx, reconnectDelay) {
			return ctx.Err()
		}
	}
}

func dial(ctx context.Context, opts Options) (net.Conn, error) {
	if opts.Config != nil && opts.Config.DisableCrypto {
		d := net.Dialer{}
		return d.DialContext(ctx, "tcp", opts.Address)
	}
	return transport.Dial(ctx, opts.Address, opts.Cert, opts.Verify)
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
