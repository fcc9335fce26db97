package circuit

import (
	"context"
	"fmt"
	"sync"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	prom "github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-circuit/config"
	"github.com/dep2p/go-circuit/internal/core/host"
	"github.com/dep2p/go-circuit/internal/core/relay"
	"github.com/dep2p/go-circuit/internal/util/addrutil"
	"github.com/dep2p/go-circuit/internal/util/logger"
	"github.com/dep2p/go-circuit/pkg/interfaces"
	"github.com/dep2p/go-circuit/pkg/types"
)

var log = logger.Logger("circuit")

// stopTimeout 关闭 Fx App 的超时
const stopTimeout = 15 * time.Second

// ════════════════════════════════════════════════════════════════════════════
//                              Node
// ════════════════════════════════════════════════════════════════════════════

// Node 中继节点
//
// 同时可以扮演源、中继、目标三种角色；是否为他人中继由
// relay.hop_enabled 决定。
type Node struct {
	app   *fx.App
	host  *host.Host
	relay *relay.Service

	mu     sync.Mutex
	closed bool
}

// Option 节点选项
type Option func(*options)

type options struct {
	registerer prom.Registerer
}

// WithRegisterer 指定指标注册器，默认使用 prometheus.DefaultRegisterer
func WithRegisterer(reg prom.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// New 创建并启动节点
//
// 返回时已完成监听，并尝试连接了配置中的已知节点。
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Node, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Log.Apply(); err != nil {
		return nil, fmt.Errorf("apply log config: %w", err)
	}

	node := &Node{}
	app := buildFxApp(cfg, o.registerer, node)
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("build node: %w", err)
	}

	if err := app.Start(ctx); err != nil {
		return nil, fmt.Errorf("start node: %w", err)
	}
	node.app = app

	log.Info("节点已启动",
		"id", node.ID().String(),
		"hop", cfg.Relay.HopEnabled,
		"addrs", len(node.host.Addrs()))
	return node, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              身份与地址
// ════════════════════════════════════════════════════════════════════════════

// ID 返回本地节点 ID
func (n *Node) ID() types.PeerID {
	return n.host.ID()
}

// Addrs 返回带 /p2p/<ID> 的可分享地址
func (n *Node) Addrs() []ma.Multiaddr {
	return n.host.FullAddrs()
}

// Host 返回底层主机
func (n *Node) Host() *host.Host {
	return n.host
}

// Relay 返回中继服务
func (n *Node) Relay() *relay.Service {
	return n.relay
}

// ════════════════════════════════════════════════════════════════════════════
//                              连接
// ════════════════════════════════════════════════════════════════════════════

// Connect 直连节点
func (n *Node) Connect(ctx context.Context, addr ma.Multiaddr) (interfaces.Conn, error) {
	if n.isClosed() {
		return nil, ErrNodeClosed
	}
	return n.host.Connect(ctx, addr)
}

// CanHop 询问 relayAddr 上的节点是否愿意中继
func (n *Node) CanHop(ctx context.Context, relayAddr ma.Multiaddr) (bool, error) {
	c, err := n.Connect(ctx, relayAddr)
	if err != nil {
		return false, err
	}
	return n.relay.CanHop(ctx, c), nil
}

// DialViaRelay 经由 relayAddr 上的中继连接 dst
func (n *Node) DialViaRelay(ctx context.Context, relayAddr ma.Multiaddr, dst types.AddrInfo) (*relay.Conn, error) {
	c, err := n.Connect(ctx, relayAddr)
	if err != nil {
		return nil, fmt.Errorf("connect relay: %w", err)
	}
	return n.relay.Dial(ctx, c, dst)
}

// DialCircuit 按中继电路地址拨号
//
//	/ip4/1.2.3.4/tcp/4001/p2p/<relay>/p2p-circuit/p2p/<dst>
//
// 地址不含中继拨号部分时复用已有的到中继的连接。
func (n *Node) DialCircuit(ctx context.Context, addr ma.Multiaddr) (*relay.Conn, error) {
	if n.isClosed() {
		return nil, ErrNodeClosed
	}

	relayID, dstID, relayDial, err := addrutil.ParseRelayAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRelayAddr, err)
	}

	var c interfaces.Conn
	if relayDial == nil {
		conns := n.host.Connections(relayID)
		if len(conns) == 0 {
			return nil, fmt.Errorf("no connection to relay %s", relayID.ShortString())
		}
		c = conns[0]
	} else {
		full, err := addrutil.BuildFullAddr(relayDial, relayID)
		if err != nil {
			return nil, err
		}
		if c, err = n.host.Connect(ctx, full); err != nil {
			return nil, fmt.Errorf("connect relay: %w", err)
		}
	}

	return n.relay.Dial(ctx, c, types.AddrInfo{ID: dstID})
}

// Accept 接受经由中继到达的连接
func (n *Node) Accept(ctx context.Context) (*relay.Conn, error) {
	if n.isClosed() {
		return nil, ErrNodeClosed
	}
	return n.relay.Accept(ctx)
}

// Stats 返回中继统计
func (n *Node) Stats() relay.Stats {
	return n.relay.Stats()
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Close 关闭节点，幂等
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := n.app.Stop(ctx); err != nil {
		return fmt.Errorf("stop node: %w", err)
	}
	log.Info("节点已关闭", "id", n.ID().ShortString())
	return nil
}

func (n *Node) isClosed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}
