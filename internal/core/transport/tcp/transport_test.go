package tcp

import (
	"context"
	"io"
	"testing"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-circuit/internal/testutil/mocks"
)

func TestTransport_DialListen(t *testing.T) {
	tr := NewTransport(Options{DialTimeout: 5 * time.Second})
	defer tr.Close()

	l, err := tr.Listen(ma.StringCast("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err)
	defer l.Close()

	laddr := l.Multiaddr()
	port, err := laddr.ValueForProtocol(ma.P_TCP)
	require.NoError(t, err)
	assert.NotEqual(t, "0", port)

	go func() {
		c, err := l.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = io.Copy(c, c)
	}()

	c, err := tr.Dial(context.Background(), laddr)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Write([]byte("tcp"))
	require.NoError(t, err)
	buf := make([]byte, 3)
	_, err = io.ReadFull(c, buf)
	require.NoError(t, err)
	assert.Equal(t, "tcp", string(buf))
	assert.True(t, c.RemoteMultiaddr().Equal(laddr))
}

func TestTransport_DialStripsPeerID(t *testing.T) {
	tr := NewTransport(Options{})
	defer tr.Close()

	l, err := tr.Listen(ma.StringCast("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err)
	defer l.Close()

	go func() {
		if c, err := l.Accept(); err == nil {
			_ = c.Close()
		}
	}()

	addr := l.Multiaddr().Encapsulate(ma.StringCast("/p2p/" + mocks.PeerID(1).String()))
	c, err := tr.Dial(context.Background(), addr)
	require.NoError(t, err)
	_ = c.Close()
}

func TestTransport_CanDial(t *testing.T) {
	tr := NewTransport(Options{})

	tests := []struct {
		addr string
		want bool
	}{
		{"/ip4/127.0.0.1/tcp/4001", true},
		{"/ip6/::1/tcp/4001", true},
		{"/ip4/127.0.0.1/udp/4001", false},
		{"/p2p/" + mocks.PeerID(1).String(), false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.CanDial(ma.StringCast(tt.addr)))
		})
	}

	require.NoError(t, tr.Close())
	assert.False(t, tr.CanDial(ma.StringCast("/ip4/127.0.0.1/tcp/4001")))
}

func TestTransport_Closed(t *testing.T) {
	tr := NewTransport(Options{})

	l, err := tr.Listen(ma.StringCast("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err)

	require.NoError(t, tr.Close())
	assert.NoError(t, tr.Close())

	// 监听器随传输关闭
	_, err = l.Accept()
	assert.Error(t, err)
	assert.NoError(t, l.Close())

	_, err = tr.Dial(context.Background(), ma.StringCast("/ip4/127.0.0.1/tcp/1"))
	assert.ErrorIs(t, err, ErrTransportClosed)
	_, err = tr.Listen(ma.StringCast("/ip4/127.0.0.1/tcp/0"))
	assert.ErrorIs(t, err, ErrTransportClosed)
}

func TestTransport_DialUnsupported(t *testing.T) {
	tr := NewTransport(Options{})
	defer tr.Close()

	_, err := tr.Dial(context.Background(), ma.StringCast("/ip4/127.0.0.1/udp/1"))
	assert.ErrorIs(t, err, ErrUnsupportedAddr)
}
