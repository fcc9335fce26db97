package relay

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-circuit/internal/util/addrutil"
	"github.com/dep2p/go-circuit/pkg/interfaces"
	"github.com/dep2p/go-circuit/pkg/types"
)

// Conn 经由中继建立的端到端电路
//
// 读写直接作用于协商结束后的原始流，中继只做透明转发。
type Conn struct {
	stream  interfaces.Stream
	id      string
	local   types.PeerID
	relay   types.PeerID
	remote  types.AddrInfo
	inbound bool
	opened  time.Time
}

var _ interfaces.Stream = (*Conn)(nil)

func newConn(s interfaces.Stream, local, relay types.PeerID, remote types.AddrInfo, inbound bool, opened time.Time) *Conn {
	return &Conn{
		stream:  s,
		id:      uuid.NewString(),
		local:   local,
		relay:   relay,
		remote:  remote,
		inbound: inbound,
		opened:  opened,
	}
}

// Read 读取对端数据
func (c *Conn) Read(p []byte) (int, error) { return c.stream.Read(p) }

// Write 向对端写数据
func (c *Conn) Write(p []byte) (int, error) { return c.stream.Write(p) }

// Close 关闭电路
func (c *Conn) Close() error { return c.stream.Close() }

// SetDeadline 设置读写截止时间
//
// 底层流不支持截止时间时返回 nil。
func (c *Conn) SetDeadline(t time.Time) error {
	if d, ok := c.stream.(deadliner); ok {
		return d.SetDeadline(t)
	}
	return nil
}

// ID 电路的本地唯一标识
func (c *Conn) ID() string { return c.id }

// LocalPeer 本地节点
func (c *Conn) LocalPeer() types.PeerID { return c.local }

// RelayPeer 转发该电路的中继节点
func (c *Conn) RelayPeer() types.PeerID { return c.relay }

// RemotePeer 电路另一端的节点
func (c *Conn) RemotePeer() types.PeerID { return c.remote.ID }

// RemoteAddrs 对端在请求中声明的地址
func (c *Conn) RemoteAddrs() []ma.Multiaddr { return c.remote.Addrs }

// Inbound 是否由对端发起
func (c *Conn) Inbound() bool { return c.inbound }

// Opened 电路建立时间
func (c *Conn) Opened() time.Time { return c.opened }

// RemoteMultiaddr 返回 /p2p/<relay>/p2p-circuit/p2p/<remote>
func (c *Conn) RemoteMultiaddr() ma.Multiaddr {
	addr, err := addrutil.BuildRelayAddr(nil, c.relay, c.remote.ID)
	if err != nil {
		return nil
	}
	return addr
}

// String 返回可读表示
func (c *Conn) String() string {
	dir := "outbound"
	if c.inbound {
		dir = "inbound"
	}
	return fmt.Sprintf("<relay.Conn %s %s via %s (%s)>",
		c.local.ShortString(), c.remote.ID.ShortString(), c.relay.ShortString(), dir)
}
