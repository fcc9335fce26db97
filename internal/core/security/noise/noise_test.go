package noise

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-circuit/internal/core/identity"
	"github.com/dep2p/go-circuit/pkg/types"
)

func newTransport(t *testing.T) (*Transport, *identity.Identity) {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	tr, err := New(id)
	require.NoError(t, err)
	return tr, id
}

type result struct {
	conn SecureConn
	err  error
}

// handshakePair 在 net.Pipe 上握手，expect 为发起方期望的对端 ID
func handshakePair(t *testing.T, client, server *Transport, expect types.PeerID) (result, result) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srvCh := make(chan result, 1)
	go func() {
		c, err := server.SecureInbound(ctx, b, "")
		if err != nil {
			// 让发起方尽快失败
			_ = b.Close()
		}
		srvCh <- result{c, err}
	}()

	c, err := client.SecureOutbound(ctx, a, expect)
	if err != nil {
		_ = a.Close()
	}
	return result{c, err}, <-srvCh
}

func TestHandshake(t *testing.T) {
	client, clientID := newTransport(t)
	server, serverID := newTransport(t)

	cr, sr := handshakePair(t, client, server, serverID.ID())
	require.NoError(t, cr.err)
	require.NoError(t, sr.err)

	assert.Equal(t, clientID.ID(), cr.conn.LocalPeer())
	assert.Equal(t, serverID.ID(), cr.conn.RemotePeer())
	assert.Equal(t, serverID.ID(), sr.conn.LocalPeer())
	assert.Equal(t, clientID.ID(), sr.conn.RemotePeer())

	go func() { _, _ = cr.conn.Write([]byte("hello")) }()
	buf := make([]byte, 5)
	_, err := io.ReadFull(sr.conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
}

func TestSecureConn_LargeWrite(t *testing.T) {
	client, _ := newTransport(t)
	server, _ := newTransport(t)

	cr, sr := handshakePair(t, client, server, "")
	require.NoError(t, cr.err)
	require.NoError(t, sr.err)

	payload := bytes.Repeat([]byte("circuit"), 30000)
	go func() {
		n, err := cr.conn.Write(payload)
		assert.NoError(t, err)
		assert.Equal(t, len(payload), n)
	}()

	got := make([]byte, len(payload))
	_, err := io.ReadFull(sr.conn, got)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestHandshake_PeerIDMismatch(t *testing.T) {
	client, _ := newTransport(t)
	server, _ := newTransport(t)
	_, other := newTransport(t)

	cr, _ := handshakePair(t, client, server, other.ID())
	require.Error(t, cr.err)
	assert.ErrorIs(t, cr.err, ErrPeerIDMismatch)
}

func TestHandshake_Timeout(t *testing.T) {
	client, _ := newTransport(t)

	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	// 对端不响应
	go func() { _, _ = io.Copy(io.Discard, b) }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.SecureOutbound(ctx, a, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_NilIdentity(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
