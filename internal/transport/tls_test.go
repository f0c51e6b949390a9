package transport

import (
	"bufio"
	"context"
	"crypto/x509"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListenAndDialRoundTripWithTrustedFingerprint(t *testing.T) {
	dir := t.TempDir()

	serverCert, err := GenerateCert(filepath.Join(dir, "server.pem"))
	require.NoError(t, err)
	clientCert, err := GenerateCert(filepath.Join(dir, "client.pem"))
	require.NoError(t, err)

	serverLeaf, err := x509.ParseCertificate(serverCert.Certificate[0])
	require.NoError(t, err)
	serverFP := ComputeSHA256(serverLeaf)

	clientStore, err := LoadStore(filepath.Join(dir, "TrustedServers.txt"))
	require.NoError(t, err)
	require.NoError(t, clientStore.AddTrusted(serverFP))

	ln, err := Listen("127.0.0.1:0", serverCert, nil) // server does not verify clients in this test
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			accepted <- err
			return
		}
		defer conn.Close()
		w := bufio.NewWriter(conn)
		_, werr := w.WriteString("hello")
		werr2 := w.Flush()
		if werr != nil {
			accepted <- werr
			return
		}
		accepted <- werr2
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := Dial(ctx, ln.Addr().String(), clientCert, VerifyAgainst(clientStore))
	require.NoError(t, err)
	defer conn.Close()

	buf := make([]byte, 5)
	_, err = conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
	require.NoError(t, <-accepted)
}

func TestDialRejectsUntrustedFingerprint(t *testing.T) {
	dir := t.TempDir()
	serverCert, err := GenerateCert(filepath.Join(dir, "server.pem"))
	require.NoError(t, err)
	clientCert, err := GenerateCert(filepath.Join(dir, "client.pem"))
	require.NoError(t, err)

	emptyStore, err := LoadStore(filepath.Join(dir, "TrustedServers.txt"))
	require.NoError(t, err)

	ln, err := Listen("127.0.0.1:0", serverCert, nil)
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = Dial(ctx, ln.Addr().String(), clientCert, VerifyAgainst(emptyStore))
	require.Error(t, err)
}
