package relay

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-circuit/internal/testutil/mocks"
	"github.com/dep2p/go-circuit/pkg/interfaces"
	pb "github.com/dep2p/go-circuit/pkg/lib/proto/circuit"
)

func stopRequest(src, dst *pb.CircuitRelay_Peer) *pb.CircuitRelay {
	return &pb.CircuitRelay{Type: pb.CircuitRelay_STOP, SrcPeer: src, DstPeer: dst}
}

func TestStop_Accepted(t *testing.T) {
	ctx := testContext(t)

	relay := newTestNode(t, 2, hopEnabled)
	dst := newTestNode(t, 3, nil)

	req := stopRequest(peerToPB(testAddrInfo(1)), peerToPB(testAddrInfo(3)))
	s, err := Stop(ctx, link(relay, dst), req)
	require.NoError(t, err)
	require.NotNil(t, s)
	defer s.Close()

	in, err := dst.svc.Accept(ctx)
	require.NoError(t, err)
	defer in.Close()
	assert.Equal(t, mocks.PeerID(1), in.RemotePeer())
	assert.Equal(t, relay.id, in.RelayPeer())

	go func() { _, _ = s.Write([]byte("data")) }()
	buf := make([]byte, 4)
	_, err = io.ReadFull(in, buf)
	require.NoError(t, err)
	assert.Equal(t, "data", string(buf))
}

func TestStop_InvalidAddrs(t *testing.T) {
	tests := []struct {
		name string
		src  *pb.CircuitRelay_Peer
		dst  *pb.CircuitRelay_Peer
		want pb.CircuitRelay_Status
	}{
		{
			"目标地址非法",
			peerToPB(testAddrInfo(1)),
			&pb.CircuitRelay_Peer{Id: mocks.PeerID(3).Bytes(), Addrs: [][]byte{invalidAddr}},
			pb.CircuitRelay_STOP_DST_MULTIADDR_INVALID,
		},
		{
			"源地址非法",
			&pb.CircuitRelay_Peer{Id: mocks.PeerID(1).Bytes(), Addrs: [][]byte{invalidAddr}},
			peerToPB(testAddrInfo(3)),
			pb.CircuitRelay_STOP_SRC_MULTIADDR_INVALID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := newTestNode(t, 2, nil)
			dst := newTestNode(t, 3, nil)

			// 直接读取目标回复的状态码
			ch, resp, err := exchange(testContext(t), link(relay, dst), stopRequest(tt.src, tt.dst), 0)
			require.NoError(t, err)
			defer ch.Close()
			assert.Equal(t, pb.CircuitRelay_STATUS, resp.GetType())
			assert.Equal(t, tt.want, resp.GetCode())

			// Stop 把拒绝视为没有可用的流
			s, err := Stop(testContext(t), link(relay, dst), stopRequest(tt.src, tt.dst))
			assert.NoError(t, err)
			assert.Nil(t, s)
		})
	}
}

func TestStop_NoResponse(t *testing.T) {
	conn := mocks.PipeConn(mocks.PeerID(2), mocks.PeerID(3), func(_ interfaces.Conn, s interfaces.Stream) {
		_ = s.Close()
	})

	s, err := Stop(testContext(t), conn, stopRequest(peerToPB(testAddrInfo(1)), peerToPB(testAddrInfo(3))))
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestStop_PeerReadsThenCloses(t *testing.T) {
	conn := mocks.PipeConn(mocks.PeerID(2), mocks.PeerID(3), func(_ interfaces.Conn, s interfaces.Stream) {
		_, _ = NewStreamHandler(s, 0).ReadMsg()
		_ = s.Close()
	})

	s, err := Stop(testContext(t), conn, stopRequest(peerToPB(testAddrInfo(1)), peerToPB(testAddrInfo(3))))
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestExchange_PeerClosedBeforeWrite(t *testing.T) {
	conn := mocks.PipeConn(mocks.PeerID(2), mocks.PeerID(3), func(_ interfaces.Conn, s interfaces.Stream) {
		_ = s.Close()
	})

	ch, resp, err := exchange(testContext(t), conn, stopRequest(nil, nil), DefaultMaxMessageSize)
	require.ErrorIs(t, err, io.EOF)
	assert.Nil(t, ch)
	assert.Nil(t, resp)
}

func TestStop_OpenStreamFails(t *testing.T) {
	s, err := Stop(testContext(t), mocks.NewMockConn(mocks.PeerID(3)), stopRequest(nil, nil))
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestStop_BacklogFull(t *testing.T) {
	ctx := testContext(t)

	relay := newTestNode(t, 2, nil)
	dst := newTestNode(t, 3, func(c *Config) { c.AcceptBacklog = 1 })
	conn := link(relay, dst)
	req := stopRequest(peerToPB(testAddrInfo(1)), peerToPB(testAddrInfo(3)))

	first, err := Stop(ctx, conn, req)
	require.NoError(t, err)
	require.NotNil(t, first)
	defer first.Close()
	require.Eventually(t, func() bool {
		return len(dst.svc.Listener().ch) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// 队列已满，第二条电路在目标侧被关闭
	second, err := Stop(ctx, conn, req)
	require.NoError(t, err)
	require.NotNil(t, second)
	_, err = second.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	in, err := dst.svc.Accept(ctx)
	require.NoError(t, err)
	_ = in.Close()
}
