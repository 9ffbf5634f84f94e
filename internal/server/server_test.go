package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lighkLife/kvs/internal/kvs"
	"github.com/lighkLife/kvs/internal/pool"
	"github.com/lighkLife/kvs/internal/wire"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	eng, err := kvs.Open(dir, nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	p, err := pool.New(4, 16, nil)
	require.NoError(t, err)

	srv := New(ln, eng, p, nil)
	go srv.Serve()

	t.Cleanup(func() {
		ln.Close()
		eng.Close()
	})
	return ln.Addr().String()
}

func roundTrip(t *testing.T, addr string, req wire.Request) wire.Response {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, wire.WriteRequest(conn, req))
	resp, err := wire.ReadResponse(conn)
	require.NoError(t, err)
	return resp
}

func TestServerEndToEndGetSetRemove(t *testing.T) {
	addr := startTestServer(t)

	resp := roundTrip(t, addr, wire.Request{Kind: wire.KindSet, Key: "key1", Value: "value1"})
	require.Equal(t, wire.StatusOK, resp.Status)

	resp = roundTrip(t, addr, wire.Request{Kind: wire.KindGet, Key: "key1"})
	require.Equal(t, wire.StatusFound, resp.Status)
	require.Equal(t, "value1", resp.Value)

	resp = roundTrip(t, addr, wire.Request{Kind: wire.KindGet, Key: "missing"})
	require.Equal(t, wire.StatusNotFound, resp.Status)

	resp = roundTrip(t, addr, wire.Request{Kind: wire.KindRemove, Key: "missing"})
	require.Equal(t, wire.StatusErr, resp.Status)
	require.Equal(t, "Key not found", resp.Message)

	resp = roundTrip(t, addr, wire.Request{Kind: wire.KindRemove, Key: "key1"})
	require.Equal(t, wire.StatusOK, resp.Status)
}

func TestServerClosesConnectionOnFramingError(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte{0xFF})
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	require.Error(t, err) // connection closed without a reply
}
