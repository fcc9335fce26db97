package types

import (
	"fmt"

	ma "github.com/multiformats/go-multiaddr"
)

// AddrInfo 节点身份 + 候选地址列表
//
// 对应中继协议消息中的 Peer 子消息。
type AddrInfo struct {
	ID    PeerID
	Addrs []ma.Multiaddr
}

// String 返回 AddrInfo 的可读表示
func (ai AddrInfo) String() string {
	return fmt.Sprintf("{%s: %v}", ai.ID.ShortString(), ai.Addrs)
}

// AddrBytes 返回地址列表的二进制表示
func (ai AddrInfo) AddrBytes() [][]byte {
	if len(ai.Addrs) == 0 {
		return nil
	}
	out := make([][]byte, 0, len(ai.Addrs))
	for _, a := range ai.Addrs {
		out = append(out, a.Bytes())
	}
	return out
}
