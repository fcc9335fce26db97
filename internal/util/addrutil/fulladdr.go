// Package addrutil 提供地址解析工具
//
// 本包提供完整地址（含 /p2p/<PeerID>）和中继电路地址的解析与构建，
// 用于 known_peers 配置、命令行参数等场景。
package addrutil

import (
	"errors"
	"fmt"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-circuit/pkg/types"
)

// ============================================================================
//                              错误定义
// ============================================================================

var (
	// ErrMissingPeerID 缺少 /p2p/<PeerID> 后缀
	ErrMissingPeerID = errors.New("addrutil: missing /p2p/<PeerID> suffix")

	// ErrInvalidPeerID 无效的 PeerID
	ErrInvalidPeerID = errors.New("addrutil: invalid peer id in address")

	// ErrNotRelayAddr 不是中继电路地址
	ErrNotRelayAddr = errors.New("addrutil: not a relay circuit address")

	// ErrEmptyAddress 空地址
	ErrEmptyAddress = errors.New("addrutil: empty address")
)

// ============================================================================
//                              完整地址
// ============================================================================

// ParseFullAddr 解析完整地址
//
//	/ip4/1.2.3.4/tcp/4001/p2p/Qm...
//
// 返回末尾的节点 ID 和去掉 /p2p 部分后的拨号地址。
func ParseFullAddr(addr ma.Multiaddr) (types.PeerID, ma.Multiaddr, error) {
	if addr == nil {
		return types.EmptyPeerID, nil, ErrEmptyAddress
	}

	dial, last := ma.SplitLast(addr)
	if last == nil || last.Protocol().Code != ma.P_P2P {
		return types.EmptyPeerID, nil, ErrMissingPeerID
	}

	id, err := types.PeerIDFromBytes(last.RawValue())
	if err != nil {
		return types.EmptyPeerID, nil, fmt.Errorf("%w: %v", ErrInvalidPeerID, err)
	}
	return id, dial, nil
}

// ParseFullAddrString 解析完整地址字符串
func ParseFullAddrString(s string) (types.PeerID, ma.Multiaddr, error) {
	if s == "" {
		return types.EmptyPeerID, nil, ErrEmptyAddress
	}
	addr, err := ma.NewMultiaddr(s)
	if err != nil {
		return types.EmptyPeerID, nil, err
	}
	return ParseFullAddr(addr)
}

// ExtractPeerID 从地址末尾提取 PeerID
//
// 地址不含 /p2p 后缀时返回 EmptyPeerID 和 nil 错误。
func ExtractPeerID(addr ma.Multiaddr) (types.PeerID, error) {
	id, _, err := ParseFullAddr(addr)
	if errors.Is(err, ErrMissingPeerID) {
		return types.EmptyPeerID, nil
	}
	return id, err
}

// BuildFullAddr 在拨号地址后追加 /p2p/<PeerID>
func BuildFullAddr(addr ma.Multiaddr, id types.PeerID) (ma.Multiaddr, error) {
	if id.IsEmpty() {
		return nil, ErrInvalidPeerID
	}
	p2p, err := P2PComponent(id)
	if err != nil {
		return nil, err
	}
	if addr == nil {
		return p2p, nil
	}
	return addr.Encapsulate(p2p), nil
}

// P2PComponent 返回 /p2p/<PeerID> 地址片段
func P2PComponent(id types.PeerID) (ma.Multiaddr, error) {
	c, err := ma.NewComponent("p2p", id.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPeerID, err)
	}
	return c, nil
}

// ============================================================================
//                              中继电路地址
// ============================================================================

// IsRelayAddr 检查是否包含 /p2p-circuit
func IsRelayAddr(addr ma.Multiaddr) bool {
	if addr == nil {
		return false
	}
	_, err := addr.ValueForProtocol(ma.P_CIRCUIT)
	return err == nil
}

// BuildRelayAddr 构建中继电路地址
//
//	<relayAddr>/p2p/<relay>/p2p-circuit/p2p/<target>
//
// relayAddr 可以为空。
func BuildRelayAddr(relayAddr ma.Multiaddr, relay, target types.PeerID) (ma.Multiaddr, error) {
	relayFull, err := BuildFullAddr(relayAddr, relay)
	if err != nil {
		return nil, err
	}
	targetPart, err := P2PComponent(target)
	if err != nil {
		return nil, err
	}
	circuit, err := ma.NewMultiaddr("/p2p-circuit")
	if err != nil {
		return nil, err
	}
	return relayFull.Encapsulate(circuit).Encapsulate(targetPart), nil
}

// ParseRelayAddr 解析中继电路地址
//
// 返回中继节点 ID、目标节点 ID 和中继节点拨号地址（/p2p/<relay> 之前的部分，可能为空）。
func ParseRelayAddr(addr ma.Multiaddr) (relay, target types.PeerID, relayAddr ma.Multiaddr, err error) {
	if !IsRelayAddr(addr) {
		return types.EmptyPeerID, types.EmptyPeerID, nil, ErrNotRelayAddr
	}

	before, after := ma.SplitFunc(addr, func(c ma.Component) bool {
		return c.Protocol().Code == ma.P_CIRCUIT
	})
	// after 以 /p2p-circuit 开头
	_, targetPart := ma.SplitFirst(after)

	relay, relayAddr, err = ParseFullAddr(before)
	if err != nil {
		return types.EmptyPeerID, types.EmptyPeerID, nil, fmt.Errorf("relay part: %w", err)
	}
	target, rest, err := ParseFullAddr(targetPart)
	if err != nil {
		return types.EmptyPeerID, types.EmptyPeerID, nil, fmt.Errorf("target part: %w", err)
	}
	if rest != nil {
		return types.EmptyPeerID, types.EmptyPeerID, nil, fmt.Errorf("%w: unexpected components after p2p-circuit", ErrNotRelayAddr)
	}
	return relay, target, relayAddr, nil
}
