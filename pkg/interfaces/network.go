package interfaces

import (
	"context"
	"io"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-circuit/pkg/types"
)

// Stream 双工字节流
//
// 协商通道与协商结束后的载荷管道使用同一个抽象。
// 实现若支持 SetReadDeadline / SetDeadline，中继会在协商超时和
// 拼接收尾时使用它们。
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// Conn 到某个远端节点的已建立连接（已加密、已多路复用）
type Conn interface {
	// RemotePeer 返回远端节点 ID
	RemotePeer() types.PeerID

	// RemoteMultiaddr 返回远端地址
	RemoteMultiaddr() ma.Multiaddr

	// NewStream 在连接上打开一条新流并协商协议
	//
	// ctx 取消时必须尽快返回错误。
	NewStream(ctx context.Context, protocol types.ProtocolID) (Stream, error)

	// Close 关闭连接及其上的全部流
	Close() error
}

// ConnProvider 连接注册表（只读视图）
type ConnProvider interface {
	// Connections 返回到 peer 的全部存活连接，无连接时返回空切片
	Connections(peer types.PeerID) []Conn
}

// StreamHandler 入站流处理函数
//
// 处理函数拥有 s 的所有权，返回前负责关闭它。
type StreamHandler func(conn Conn, s Stream)

// Host 网络主机
//
// 中继服务需要：本地身份、连接注册表、协议处理器注册。
type Host interface {
	ConnProvider

	// ID 返回本地节点 ID
	ID() types.PeerID

	// Addrs 返回本地监听地址
	Addrs() []ma.Multiaddr

	// SetStreamHandler 注册协议处理器，同一协议重复注册时覆盖
	SetStreamHandler(protocol types.ProtocolID, handler StreamHandler)

	// RemoveStreamHandler 移除协议处理器
	RemoveStreamHandler(protocol types.ProtocolID)

	// Connect 拨号并返回到对端的连接，已有连接时直接复用
	Connect(ctx context.Context, addr ma.Multiaddr) (Conn, error)

	// Close 关闭主机
	Close() error
}
