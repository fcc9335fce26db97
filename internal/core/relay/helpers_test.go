package relay

import (
	"fmt"
	"testing"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-circuit/internal/testutil/mocks"
	"github.com/dep2p/go-circuit/pkg/interfaces"
	"github.com/dep2p/go-circuit/pkg/protocolids"
	"github.com/dep2p/go-circuit/pkg/types"
)

// invalidAddr 无法解析的地址字节（varint 未结束）
var invalidAddr = []byte{0xde, 0xad}

func testAddrInfo(seed byte) types.AddrInfo {
	return types.AddrInfo{
		ID:    mocks.PeerID(seed),
		Addrs: []ma.Multiaddr{ma.StringCast(fmt.Sprintf("/ip4/127.0.0.1/tcp/%d", 4000+int(seed)))},
	}
}

// testNode 一个挂在 MockHost 上的中继服务
type testNode struct {
	id   types.PeerID
	host *mocks.MockHost
	svc  *Service
}

func newTestNode(t *testing.T, seed byte, mutate func(*Config), opts ...Option) *testNode {
	t.Helper()

	ai := testAddrInfo(seed)
	host := mocks.NewMockHost(ai.ID)
	host.AddrsValue = ai.Addrs

	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	svc, err := NewService(cfg, host, opts...)
	require.NoError(t, err)
	require.NoError(t, svc.Start())
	t.Cleanup(func() { _ = svc.Close() })

	return &testNode{id: ai.ID, host: host, svc: svc}
}

func hopEnabled(c *Config) { c.HopEnabled = true }

// link 建立 from → to 的连接并登记到 from 的连接表
func link(from, to *testNode) *mocks.MockConn {
	c := mocks.PipeConn(from.id, to.id, func(conn interfaces.Conn, s interfaces.Stream) {
		h := to.host.Handler(protocolids.Relay)
		if h == nil {
			_ = s.Close()
			return
		}
		h(conn, s)
	})
	from.host.AddConn(to.id, c)
	return c
}
