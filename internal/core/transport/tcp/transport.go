// Package tcp 提供基于 TCP 的传输层实现
//
// TCP 传输不提供原生多路复用，需要配合 Muxer 使用。
// 地址统一使用 multiaddr 表示，例如 /ip4/127.0.0.1/tcp/4001。
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"go.uber.org/multierr"

	"github.com/dep2p/go-circuit/internal/util/logger"
)

var log = logger.Logger("transport/tcp")

var (
	// ErrTransportClosed 传输已关闭
	ErrTransportClosed = errors.New("transport closed")

	// ErrUnsupportedAddr 不是 TCP 地址
	ErrUnsupportedAddr = errors.New("unsupported tcp address")
)

// ============================================================================
//                              Transport 实现
// ============================================================================

// Options 传输选项
type Options struct {
	// DialTimeout 拨号超时，ctx 无截止时间时生效
	DialTimeout time.Duration

	// KeepAlive TCP keepalive 周期，0 使用系统默认
	KeepAlive time.Duration
}

// Transport TCP 传输层实现
type Transport struct {
	opts Options

	listenersMu sync.Mutex
	listeners   map[*Listener]struct{}

	closed atomic.Bool
}

// NewTransport 创建 TCP 传输层
func NewTransport(opts Options) *Transport {
	return &Transport{
		opts:      opts,
		listeners: make(map[*Listener]struct{}),
	}
}

// CanDial 检查是否可以拨号到指定地址
func (t *Transport) CanDial(addr ma.Multiaddr) bool {
	if t.closed.Load() || addr == nil {
		return false
	}
	_, err := dialArgs(addr)
	return err == nil
}

// Dial 建立出站连接
//
// addr 末尾的 /p2p/<id> 部分会被忽略，由上层校验。
func (t *Transport) Dial(ctx context.Context, addr ma.Multiaddr) (manet.Conn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}

	raddr, err := dialArgs(addr)
	if err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok && t.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.DialTimeout)
		defer cancel()
	}

	dialer := manet.Dialer{Dialer: net.Dialer{KeepAlive: t.opts.KeepAlive}}
	conn, err := dialer.DialContext(ctx, raddr)
	if err != nil {
		return nil, fmt.Errorf("连接失败: %w", err)
	}

	if tc, ok := conn.(interface{ SetNoDelay(bool) error }); ok {
		_ = tc.SetNoDelay(true)
	}

	log.Debug("TCP 连接已建立", "remote", conn.RemoteMultiaddr().String())
	return conn, nil
}

// Listen 监听入站连接
func (t *Transport) Listen(addr ma.Multiaddr) (*Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}

	laddr, err := dialArgs(addr)
	if err != nil {
		return nil, err
	}

	ml, err := manet.Listen(laddr)
	if err != nil {
		return nil, fmt.Errorf("监听失败: %w", err)
	}

	l := &Listener{
		Listener: ml,
		onClose:  t.removeListener,
	}

	t.listenersMu.Lock()
	t.listeners[l] = struct{}{}
	t.listenersMu.Unlock()

	log.Info("TCP 监听已启动", "addr", ml.Multiaddr().String())
	return l, nil
}

// Protocols 返回支持的协议
func (t *Transport) Protocols() []string {
	return []string{"tcp"}
}

// Close 关闭传输层及其全部监听器
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.listenersMu.Lock()
	listeners := make([]*Listener, 0, len(t.listeners))
	for l := range t.listeners {
		listeners = append(listeners, l)
	}
	t.listenersMu.Unlock()

	var err error
	for _, l := range listeners {
		err = multierr.Append(err, l.Close())
	}
	return err
}

func (t *Transport) removeListener(l *Listener) {
	t.listenersMu.Lock()
	delete(t.listeners, l)
	t.listenersMu.Unlock()
}

// dialArgs 去掉 /p2p 部分并确认剩余地址是 TCP 地址
func dialArgs(addr ma.Multiaddr) (ma.Multiaddr, error) {
	if addr == nil {
		return nil, ErrUnsupportedAddr
	}
	transport, _ := ma.SplitFunc(addr, func(c ma.Component) bool {
		return c.Protocol().Code == ma.P_P2P
	})
	if transport == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAddr, addr)
	}
	if _, err := transport.ValueForProtocol(ma.P_TCP); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAddr, addr)
	}
	if !manet.IsThinWaist(transport) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAddr, addr)
	}
	return transport, nil
}
