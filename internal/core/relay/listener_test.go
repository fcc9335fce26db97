package relay

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeConn(t *testing.T, seed byte) (*Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return newConn(a, testAddrInfo(3).ID, testAddrInfo(2).ID, testAddrInfo(seed), true, time.Now()), b
}

func TestListener_DeliverAccept(t *testing.T) {
	l := newListener(2)
	c1, _ := pipeConn(t, 1)
	c2, _ := pipeConn(t, 4)

	require.True(t, l.deliver(c1))
	require.True(t, l.deliver(c2))

	// 队列已满
	c3, _ := pipeConn(t, 5)
	assert.False(t, l.deliver(c3))

	got, err := l.Accept(context.Background())
	require.NoError(t, err)
	assert.Same(t, c1, got)
	got, err = l.Accept(context.Background())
	require.NoError(t, err)
	assert.Same(t, c2, got)
}

func TestListener_AcceptContext(t *testing.T) {
	l := newListener(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.Accept(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestListener_Close(t *testing.T) {
	l := newListener(4)
	c, peer := pipeConn(t, 1)
	require.True(t, l.deliver(c))

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	// 未取走的电路被关闭
	_, err := peer.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	_, err = l.Accept(context.Background())
	assert.ErrorIs(t, err, ErrListenerClosed)

	c2, _ := pipeConn(t, 4)
	assert.False(t, l.deliver(c2))
}

func TestListener_CloseWakesAccept(t *testing.T) {
	l := newListener(1)

	errCh := make(chan error, 1)
	go func() {
		_, err := l.Accept(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, l.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrListenerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("accept not woken")
	}
}

func TestConn_Addressing(t *testing.T) {
	c, _ := pipeConn(t, 1)

	addr := c.RemoteMultiaddr()
	require.NotNil(t, addr)
	assert.Equal(t, "/p2p/"+testAddrInfo(2).ID.String()+"/p2p-circuit/p2p/"+testAddrInfo(1).ID.String(), addr.String())
	assert.NotEmpty(t, c.ID())
	assert.Contains(t, c.String(), "inbound")
	assert.False(t, c.Opened().IsZero())
}

// plainStream 不支持截止时间的流
type plainStream struct {
	io.ReadWriteCloser
}

func TestConn_SetDeadline(t *testing.T) {
	c, _ := pipeConn(t, 1)
	require.NoError(t, c.SetDeadline(time.Now().Add(time.Minute)))

	// 底层流已关闭时返回其错误
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.SetDeadline(time.Now()), io.ErrClosedPipe)

	a, b := net.Pipe()
	defer b.Close()
	plain := newConn(plainStream{a}, testAddrInfo(3).ID, testAddrInfo(2).ID, testAddrInfo(1), false, time.Now())
	defer plain.Close()
	assert.NoError(t, plain.SetDeadline(time.Now()))
}
