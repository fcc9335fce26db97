package mocks

import (
	"context"
	"crypto/ed25519"
	"net"
	"sync"
	"sync/atomic"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-circuit/pkg/interfaces"
	"github.com/dep2p/go-circuit/pkg/types"
)

// PeerID 由种子字节确定性地生成一个合法的 PeerID
func PeerID(seed byte) types.PeerID {
	s := make([]byte, ed25519.SeedSize)
	for i := range s {
		s[i] = seed
	}
	pub := ed25519.NewKeyFromSeed(s).Public().(ed25519.PublicKey)
	id, err := types.PeerIDFromPublicKey(pub)
	if err != nil {
		panic(err)
	}
	return id
}

// ============================================================================
//                              MockConn
// ============================================================================

// MockConn 模拟 interfaces.Conn
type MockConn struct {
	RemotePeerID types.PeerID
	RemoteAddr   ma.Multiaddr

	// 可覆盖的方法
	NewStreamFunc func(ctx context.Context, protocol types.ProtocolID) (interfaces.Stream, error)
	CloseFunc     func() error

	// 调用记录
	NewStreamCalls atomic.Int32
}

var _ interfaces.Conn = (*MockConn)(nil)

// NewMockConn 创建 MockConn
func NewMockConn(remote types.PeerID) *MockConn {
	return &MockConn{RemotePeerID: remote}
}

// PipeConn 创建一条"连接"：每次 NewStream 生成一对 net.Pipe，
// 另一端交给 handler，handler 看到的连接对端是 local
func PipeConn(local, remote types.PeerID, handler interfaces.StreamHandler) *MockConn {
	back := NewMockConn(local)
	c := NewMockConn(remote)
	c.NewStreamFunc = func(ctx context.Context, _ types.ProtocolID) (interfaces.Stream, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, b := net.Pipe()
		go handler(back, b)
		return a, nil
	}
	return c
}

// RemotePeer 返回远端节点 ID
func (m *MockConn) RemotePeer() types.PeerID {
	return m.RemotePeerID
}

// RemoteMultiaddr 返回远端地址
func (m *MockConn) RemoteMultiaddr() ma.Multiaddr {
	return m.RemoteAddr
}

// NewStream 打开新流
func (m *MockConn) NewStream(ctx context.Context, protocol types.ProtocolID) (interfaces.Stream, error) {
	m.NewStreamCalls.Add(1)
	if m.NewStreamFunc != nil {
		return m.NewStreamFunc(ctx, protocol)
	}
	return nil, net.ErrClosed
}

// Close 关闭连接
func (m *MockConn) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// ============================================================================
//                              MockHost
// ============================================================================

// MockHost 模拟 interfaces.Host
type MockHost struct {
	IDValue    types.PeerID
	AddrsValue []ma.Multiaddr

	// 可覆盖的方法
	ConnectFunc func(ctx context.Context, addr ma.Multiaddr) (interfaces.Conn, error)

	mu       sync.Mutex
	conns    map[types.PeerID][]interfaces.Conn
	handlers map[types.ProtocolID]interfaces.StreamHandler

	// 调用记录
	ConnectionsCalls atomic.Int32
}

var _ interfaces.Host = (*MockHost)(nil)

// NewMockHost 创建 MockHost
func NewMockHost(id types.PeerID) *MockHost {
	return &MockHost{
		IDValue:  id,
		conns:    make(map[types.PeerID][]interfaces.Conn),
		handlers: make(map[types.ProtocolID]interfaces.StreamHandler),
	}
}

// AddConn 登记一条到 peer 的连接
func (m *MockHost) AddConn(peer types.PeerID, c interfaces.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[peer] = append(m.conns[peer], c)
}

// Handler 返回已注册的处理器
func (m *MockHost) Handler(protocol types.ProtocolID) interfaces.StreamHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[protocol]
}

// ID 返回本地节点 ID
func (m *MockHost) ID() types.PeerID {
	return m.IDValue
}

// Addrs 返回本地地址
func (m *MockHost) Addrs() []ma.Multiaddr {
	return m.AddrsValue
}

// Connections 返回到 peer 的连接
func (m *MockHost) Connections(peer types.PeerID) []interfaces.Conn {
	m.ConnectionsCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interfaces.Conn(nil), m.conns[peer]...)
}

// SetStreamHandler 注册处理器
func (m *MockHost) SetStreamHandler(protocol types.ProtocolID, handler interfaces.StreamHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[protocol] = handler
}

// RemoveStreamHandler 移除处理器
func (m *MockHost) RemoveStreamHandler(protocol types.ProtocolID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, protocol)
}

// Connect 拨号
func (m *MockHost) Connect(ctx context.Context, addr ma.Multiaddr) (interfaces.Conn, error) {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx, addr)
	}
	return nil, net.ErrClosed
}

// Close 关闭主机
func (m *MockHost) Close() error {
	return nil
}
