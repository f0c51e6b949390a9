package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"

	"github.com/barriernet/barriernet/internal/logging"
)

var log = logging.L("transport")

// ErrFingerprintMismatch reports a peer certificate whose SHA-256
// fingerprint is not present in the relevant trust store (§7
// FingerprintMismatch).
type ErrFingerprintMismatch struct {
	Peer Fingerprint
}

func (e *ErrFingerprintMismatch) Error() string {
	return fmt.Sprintf("fingerprint mismatch: peer presented untrusted %s", e.Peer)
}

// TrustVerifier is called with the peer's leaf certificate fingerprint
// during the TLS handshake. It returns nil to accept the connection or
// ErrFingerprintMismatch (wrapped) to reject it.
type TrustVerifier func(fp Fingerprint) error

// VerifyAgainst returns a TrustVerifier backed by store: known
// fingerprints are accepted, everything else is reported as a mismatch.
// The out-of-core accept dialog calls store.AddTrusted on user
// confirmation; this function never does so itself (§7: "never
// auto-trusts").
func VerifyAgainst(store *Store) TrustVerifier {
	return func(fp Fingerprint) error {
		if store.IsTrusted(fp) {
			return nil
		}
		return &ErrFingerprintMismatch{Peer: fp}
	}
}

// tlsConfig builds a *tls.Config that presents cert and authenticates the
// peer purely by fingerprint rather than a certificate chain: there is no
// CA in this protocol (§3 "authenticate peers in the absence of a PKI"), so
// chain verification is disabled and VerifyPeerCertificate substitutes the
// trust-store check.
func tlsConfig(cert tls.Certificate, verify TrustVerifier) *tls.Config {
	cfg := &tls.Config{
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: true, // chain verification replaced by fingerprint check below
		MinVersion:         tls.VersionTLS12,
	}
	cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if verify == nil || len(rawCerts) == 0 {
			return nil
		}
		leaf, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return fmt.Errorf("parse peer certificate: %w", err)
		}
		fp := ComputeSHA256(leaf)
		if err := verify(fp); err != nil {
			log.Warn("peer fingerprint rejected", "fingerprint", fp.String())
			return err
		}
		return nil
	}
	return cfg
}

// Listener accepts incoming TLS connections and authenticates each peer's
// certificate fingerprint against a trust store (server role, §3).
type Listener struct {
	net.Listener
}

// Listen binds addr and wraps it with TLS, checking connecting clients
// against verify (typically backed by TrustedClients.txt).
func Listen(addr string, cert tls.Certificate, verify TrustVerifier) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	cfg := tlsConfig(cert, verify)
	if verify != nil {
		// Without a client certificate request, VerifyPeerCertificate would
		// see no certificate and accept every client.
		cfg.ClientAuth = tls.RequireAnyClientCert
	}
	tlsLn := tls.NewListener(ln, cfg)
	return &Listener{Listener: tlsLn}, nil
}

// Dial connects to addr over TLS, checking the server's certificate
// fingerprint against verify (typically backed by TrustedServers.txt).
func Dial(ctx context.Context, addr string, cert tls.Certificate, verify TrustVerifier) (net.Conn, error) {
	dialer := &tls.Dialer{Config: tlsConfig(cert, verify)}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}
