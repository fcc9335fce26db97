package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	mss "github.com/multiformats/go-multistream"

	"github.com/dep2p/go-circuit/config"
	"github.com/dep2p/go-circuit/internal/core/identity"
	"github.com/dep2p/go-circuit/internal/core/muxer/yamux"
	"github.com/dep2p/go-circuit/internal/core/security/noise"
	"github.com/dep2p/go-circuit/internal/core/transport/tcp"
	"github.com/dep2p/go-circuit/internal/util/addrutil"
	"github.com/dep2p/go-circuit/internal/util/logger"
	"github.com/dep2p/go-circuit/pkg/interfaces"
	"github.com/dep2p/go-circuit/pkg/types"
)

var log = logger.Logger("core/host")

var (
	// ErrHostClosed 主机已关闭
	ErrHostClosed = errors.New("host: closed")

	// ErrSelfDial 拨号到自身
	ErrSelfDial = errors.New("host: dial to self")
)

// Host 网络主机
//
// 聚合 TCP 传输、Noise 安全通道、yamux 多路复用和
// multistream-select 协议协商。
type Host struct {
	cfg      config.HostConfig
	identity *identity.Identity

	tcp   *tcp.Transport
	noise *noise.Transport

	// multistream-select muxer 用于入站协议协商
	mux *mss.MultistreamMuxer[string]

	handlersMu sync.RWMutex
	handlers   map[types.ProtocolID]interfaces.StreamHandler

	connsMu sync.RWMutex
	conns   map[types.PeerID][]*conn

	listenersMu sync.RWMutex
	listeners   []*tcp.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

var _ interfaces.Host = (*Host)(nil)

// New 创建主机，需要调用 Listen 才能接受入站连接
func New(cfg config.HostConfig, id *identity.Identity) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if id == nil {
		return nil, errors.New("host: identity is nil")
	}

	sec, err := noise.New(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Host{
		cfg:      cfg,
		identity: id,
		tcp: tcp.NewTransport(tcp.Options{
			DialTimeout: cfg.DialTimeout,
			KeepAlive:   cfg.KeepAliveInterval,
		}),
		noise:    sec,
		mux:      mss.NewMultistreamMuxer[string](),
		handlers: make(map[types.ProtocolID]interfaces.StreamHandler),
		conns:    make(map[types.PeerID][]*conn),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// ============================================================================
//                              身份与地址
// ============================================================================

// ID 返回本地节点 ID
func (h *Host) ID() types.PeerID {
	return h.identity.ID()
}

// Addrs 返回本地监听地址
//
// 监听在未指定地址（0.0.0.0 / ::）上时展开为各网卡地址。
func (h *Host) Addrs() []ma.Multiaddr {
	h.listenersMu.RLock()
	listen := make([]ma.Multiaddr, 0, len(h.listeners))
	for _, l := range h.listeners {
		listen = append(listen, l.Multiaddr())
	}
	h.listenersMu.RUnlock()

	if len(listen) == 0 {
		return nil
	}

	ifaceAddrs, err := manet.InterfaceMultiaddrs()
	if err != nil {
		return listen
	}
	resolved, err := manet.ResolveUnspecifiedAddresses(listen, ifaceAddrs)
	if err != nil {
		return listen
	}
	return resolved
}

// FullAddrs 返回附带 /p2p/<ID> 的可分享地址
func (h *Host) FullAddrs() []ma.Multiaddr {
	addrs := h.Addrs()
	out := make([]ma.Multiaddr, 0, len(addrs))
	for _, a := range addrs {
		full, err := addrutil.BuildFullAddr(a, h.ID())
		if err != nil {
			continue
		}
		out = append(out, full)
	}
	return out
}

// ============================================================================
//                              监听
// ============================================================================

// Listen 在给定地址上监听
func (h *Host) Listen(addrs ...ma.Multiaddr) error {
	if h.closed.Load() {
		return ErrHostClosed
	}

	for _, addr := range addrs {
		l, err := h.tcp.Listen(addr)
		if err != nil {
			return fmt.Errorf("监听 %s 失败: %w", addr, err)
		}

		h.listenersMu.Lock()
		h.listeners = append(h.listeners, l)
		h.listenersMu.Unlock()

		h.wg.Add(1)
		go h.acceptLoop(l)
	}
	return nil
}

func (h *Host) acceptLoop(l *tcp.Listener) {
	defer h.wg.Done()

	for {
		c, err := l.Accept()
		if err != nil {
			if !h.closed.Load() {
				log.Warn("接受连接失败，停止监听", "addr", l.Multiaddr().String(), "err", err)
			}
			return
		}

		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.upgradeInbound(c)
		}()
	}
}

func (h *Host) upgradeInbound(c manet.Conn) {
	ctx, cancel := context.WithTimeout(h.ctx, h.cfg.HandshakeTimeout)
	defer cancel()

	sc, err := h.noise.SecureInbound(ctx, c, types.EmptyPeerID)
	if err != nil {
		log.Debug("入站握手失败", "remote", c.RemoteMultiaddr().String(), "err", err)
		_ = c.Close()
		return
	}

	if _, err := h.addConn(sc, c.RemoteMultiaddr(), true); err != nil {
		log.Debug("入站连接升级失败", "remote", c.RemoteMultiaddr().String(), "err", err)
		_ = sc.Close()
	}
}

// ============================================================================
//                              拨号
// ============================================================================

// Connect 拨号到 addr，已有到同一节点的连接时直接复用
//
// addr 末尾带 /p2p/<ID> 时校验 Noise 握手得到的对端身份。
func (h *Host) Connect(ctx context.Context, addr ma.Multiaddr) (interfaces.Conn, error) {
	if h.closed.Load() {
		return nil, ErrHostClosed
	}

	expected, err := addrutil.ExtractPeerID(addr)
	if err != nil {
		return nil, err
	}
	if expected == h.ID() {
		return nil, ErrSelfDial
	}
	if !expected.IsEmpty() {
		if existing := h.Connections(expected); len(existing) > 0 {
			return existing[0], nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.DialTimeout)
	defer cancel()

	nc, err := h.tcp.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	sc, err := h.noise.SecureOutbound(ctx, nc, expected)
	if err != nil {
		_ = nc.Close()
		return nil, err
	}

	c, err := h.addConn(sc, nc.RemoteMultiaddr(), false)
	if err != nil {
		_ = sc.Close()
		return nil, err
	}
	log.Debug("已连接节点", "peer", c.RemotePeer().ShortString(), "addr", addr.String())
	return c, nil
}

// ConnectKnownPeers 连接配置中的已知节点
//
// 单个节点失败只记录日志，返回成功连接的数量。
func (h *Host) ConnectKnownPeers(ctx context.Context, peers []ma.Multiaddr) int {
	connected := 0
	for _, addr := range peers {
		if _, err := h.Connect(ctx, addr); err != nil {
			log.Warn("连接已知节点失败", "addr", addr.String(), "err", err)
			continue
		}
		connected++
	}
	if len(peers) > 0 {
		log.Info("已知节点连接完成", "total", len(peers), "connected", connected)
	}
	return connected
}

// ============================================================================
//                              连接注册表
// ============================================================================

// Connections 返回到 peer 的全部存活连接
func (h *Host) Connections(peer types.PeerID) []interfaces.Conn {
	h.connsMu.RLock()
	defer h.connsMu.RUnlock()

	conns := h.conns[peer]
	out := make([]interfaces.Conn, 0, len(conns))
	for _, c := range conns {
		if !c.IsClosed() {
			out = append(out, c)
		}
	}
	return out
}

// Peers 返回当前有连接的节点
func (h *Host) Peers() []types.PeerID {
	h.connsMu.RLock()
	defer h.connsMu.RUnlock()

	peers := make([]types.PeerID, 0, len(h.conns))
	for p := range h.conns {
		peers = append(peers, p)
	}
	return peers
}

func (h *Host) addConn(sc noise.SecureConn, remote ma.Multiaddr, inbound bool) (*conn, error) {
	m, err := yamux.NewMuxer(sc, inbound, yamux.ConfigFromHost(h.cfg))
	if err != nil {
		return nil, err
	}

	c := &conn{
		host:       h,
		secure:     sc,
		muxer:      m,
		remoteAddr: remote,
		inbound:    inbound,
	}

	h.connsMu.Lock()
	if h.closed.Load() {
		h.connsMu.Unlock()
		_ = m.Close()
		return nil, ErrHostClosed
	}
	peer := c.RemotePeer()
	h.conns[peer] = append(h.conns[peer], c)
	h.wg.Add(1)
	h.connsMu.Unlock()

	go h.handleConn(c)

	return c, nil
}

func (h *Host) removeConn(c *conn) {
	h.connsMu.Lock()
	defer h.connsMu.Unlock()

	peer := c.RemotePeer()
	conns := h.conns[peer]
	for i, other := range conns {
		if other == c {
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(h.conns, peer)
	} else {
		h.conns[peer] = conns
	}
}

// handleConn 接受连接上的入站流，会话结束时关闭连接
func (h *Host) handleConn(c *conn) {
	defer h.wg.Done()
	defer c.Close()

	for {
		s, err := c.muxer.AcceptStream()
		if err != nil {
			return
		}
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.handleStream(c, s)
		}()
	}
}

// ============================================================================
//                              协议处理
// ============================================================================

// SetStreamHandler 注册协议处理器
func (h *Host) SetStreamHandler(protocol types.ProtocolID, handler interfaces.StreamHandler) {
	h.handlersMu.Lock()
	h.handlers[protocol] = handler
	h.handlersMu.Unlock()

	h.mux.AddHandler(string(protocol), nil)
	log.Debug("注册协议处理器", "protocol", protocol)
}

// RemoveStreamHandler 移除协议处理器
func (h *Host) RemoveStreamHandler(protocol types.ProtocolID) {
	h.mux.RemoveHandler(string(protocol))

	h.handlersMu.Lock()
	delete(h.handlers, protocol)
	h.handlersMu.Unlock()
	log.Debug("移除协议处理器", "protocol", protocol)
}

// handleStream 服务端协商并分发入站流
func (h *Host) handleStream(c *conn, s *yamux.Stream) {
	_ = s.SetDeadline(time.Now().Add(h.cfg.HandshakeTimeout))

	proto, _, err := h.mux.Negotiate(s)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			log.Debug("协议协商失败", "peer", c.RemotePeer().ShortString(), "err", err)
		}
		_ = s.Close()
		return
	}
	_ = s.SetDeadline(time.Time{})

	h.handlersMu.RLock()
	handler := h.handlers[types.ProtocolID(proto)]
	h.handlersMu.RUnlock()

	if handler == nil {
		// 协商后处理器被移除
		_ = s.Close()
		return
	}
	handler(c, s)
}

// ============================================================================
//                              生命周期
// ============================================================================

// Close 关闭主机：停止监听并关闭全部连接
func (h *Host) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	h.cancel()

	err := h.tcp.Close()
	h.listenersMu.Lock()
	h.listeners = nil
	h.listenersMu.Unlock()

	h.connsMu.RLock()
	var conns []*conn
	for _, cs := range h.conns {
		conns = append(conns, cs...)
	}
	h.connsMu.RUnlock()

	for _, c := range conns {
		if cerr := c.Close(); cerr != nil {
			log.Debug("关闭连接失败", "peer", c.RemotePeer().ShortString(), "err", cerr)
		}
	}

	h.wg.Wait()
	log.Info("主机已关闭", "id", h.ID().ShortString())
	return err
}
