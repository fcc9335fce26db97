package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-circuit/pkg/interfaces"
	pb "github.com/dep2p/go-circuit/pkg/lib/proto/circuit"
	"github.com/dep2p/go-circuit/pkg/protocolids"
	"github.com/dep2p/go-circuit/pkg/types"
)

// ============================================================================
//                              Service
// ============================================================================

// Service 中继协议服务
//
// 同一个 Service 同时扮演三种角色：响应 CAN_HOP，作为中继处理 HOP，
// 作为目标处理 STOP。入站电路通过 Listener 交给应用，出站电路通过 Dial
// 建立。
type Service struct {
	cfg     Config
	host    interfaces.Host
	metrics MetricsTracer
	clock   clock.Clock

	listener *Listener

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool
	wg      sync.WaitGroup

	circuitsMu sync.RWMutex
	circuits   map[string]*circuit

	totalCircuits atomic.Int64
	bytesRelayed  atomic.Int64
}

// circuit 中继侧正在拼接的一条电路
type circuit struct {
	id      string
	src     types.PeerID
	dst     types.PeerID
	started time.Time
	bytes   atomic.Int64
}

// CircuitInfo 电路快照
type CircuitInfo struct {
	ID      string
	Src     types.PeerID
	Dst     types.PeerID
	Started time.Time
	Bytes   int64
}

// Stats 服务统计
type Stats struct {
	ActiveCircuits int
	TotalCircuits  int64
	BytesRelayed   int64
}

// Option 服务选项
type Option func(*Service)

// WithMetricsTracer 设置指标实现，nil 表示不采集
func WithMetricsTracer(mt MetricsTracer) Option {
	return func(s *Service) {
		if mt != nil {
			s.metrics = mt
		}
	}
}

// WithClock 设置时钟，用于电路建立时间与时长统计
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewService 创建中继服务
func NewService(cfg Config, host interfaces.Host, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if host == nil {
		return nil, fmt.Errorf("%w: host is nil", ErrInvalidConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:      cfg,
		host:     host,
		metrics:  noopTracer{},
		clock:    clock.New(),
		listener: newListener(cfg.AcceptBacklog),
		ctx:      ctx,
		cancel:   cancel,
		circuits: make(map[string]*circuit),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start 注册协议处理器
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServiceClosed
	}
	if s.started {
		return nil
	}
	s.started = true

	s.host.SetStreamHandler(protocolids.Relay, s.HandleStream)
	log.Info("中继服务已启动",
		"peer", s.host.ID().ShortString(),
		"hop", s.cfg.HopEnabled,
		"hop_active", s.cfg.HopActive)
	return nil
}

// Close 停止服务
//
// 注销协议处理器，中断所有协商与电路，并等待处理 goroutine 退出。
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	if started {
		s.host.RemoveStreamHandler(protocolids.Relay)
	}
	s.cancel()
	err := s.listener.Close()
	s.wg.Wait()

	log.Info("中继服务已停止", "total_circuits", s.totalCircuits.Load(), "bytes_relayed", s.bytesRelayed.Load())
	return err
}

// acquire 登记一个处理 goroutine，服务已关闭时返回 false
func (s *Service) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

// ============================================================================
//                              入站分发
// ============================================================================

// HandleStream 处理一条入站中继协议流
//
// 读取第一条消息并按类型分发。空流静默关闭；首帧无法解码或类型不是
// CAN_HOP / HOP / STOP 时回复 MALFORMED_MESSAGE。
func (s *Service) HandleStream(conn interfaces.Conn, stream interfaces.Stream) {
	if !s.acquire() {
		_ = stream.Close()
		return
	}
	defer s.wg.Done()

	ch := NewStreamHandler(stream, s.cfg.MaxMessageSize)
	defer ch.Close()

	// Rest 之后 Close 不影响电路流，电路由 Splice 自行处理取消
	stopWatch := context.AfterFunc(s.ctx, func() { _ = ch.Close() })
	defer stopWatch()

	if s.cfg.StreamTimeout > 0 {
		ch.SetDeadline(time.Now().Add(s.cfg.StreamTimeout))
	}

	msg, err := ch.ReadMsg()
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			log.Debug("入站流无消息", "peer", conn.RemotePeer().ShortString())
		case errors.Is(err, ErrMalformedMessage):
			log.Debug("入站消息无法解码", "peer", conn.RemotePeer().ShortString(), "err", err)
			_ = ch.End(statusMsg(pb.CircuitRelay_MALFORMED_MESSAGE))
		default:
			log.Debug("读取入站消息失败", "peer", conn.RemotePeer().ShortString(), "err", err)
		}
		return
	}

	log.Debug("收到中继消息", "peer", conn.RemotePeer().ShortString(), "type", msg.GetType())

	switch msg.GetType() {
	case pb.CircuitRelay_CAN_HOP:
		s.handleCanHop(conn, ch)
	case pb.CircuitRelay_HOP:
		s.handleHop(conn, msg, ch)
	case pb.CircuitRelay_STOP:
		if raw := s.handleStop(conn, msg, ch); raw != nil {
			s.deliver(conn, msg, raw)
		}
	default:
		log.Debug("不支持的消息类型", "peer", conn.RemotePeer().ShortString(), "type", msg.GetType())
		_ = ch.End(statusMsg(pb.CircuitRelay_MALFORMED_MESSAGE))
	}
}

// deliver 把 STOP 建立的电路交给 Listener
func (s *Service) deliver(relayConn interfaces.Conn, msg *pb.CircuitRelay, raw interfaces.Stream) {
	remote, err := peerFromPB(msg.GetSrcPeer())
	if err != nil {
		log.Debug("STOP 请求 srcPeer 无法解码", "relay", relayConn.RemotePeer().ShortString(), "err", err)
	}

	c := newConn(raw, s.host.ID(), relayConn.RemotePeer(), remote, true, s.clock.Now())
	if !s.listener.deliver(c) {
		log.Warn("入站电路队列已满或已关闭，丢弃电路", "relay", relayConn.RemotePeer().ShortString(), "src", remote.ID.ShortString())
		_ = c.Close()
		return
	}
	log.Info("接受入站电路", "id", c.ID(), "relay", relayConn.RemotePeer().ShortString(), "src", remote.ID.ShortString())
}

// ============================================================================
//                              出站
// ============================================================================

// Dial 经由 relayConn 的对端建立到 dst 的电路
//
// srcPeer 为本地身份与监听地址。失败时错误满足
// errors.Is(err, ErrHopRequestFailed)。
func (s *Service) Dial(ctx context.Context, relayConn interfaces.Conn, dst types.AddrInfo) (*Conn, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrServiceClosed
	}

	src := types.AddrInfo{ID: s.host.ID(), Addrs: s.host.Addrs()}
	ch, err := hop(ctx, relayConn, NewHopRequest(src, dst), s.cfg.MaxMessageSize)
	if err != nil {
		return nil, err
	}

	raw := ch.Rest()
	if raw == nil {
		return nil, fmt.Errorf("%w: channel closed", ErrHopRequestFailed)
	}
	c := newConn(raw, src.ID, relayConn.RemotePeer(), dst, false, s.clock.Now())
	log.Info("出站电路已建立", "id", c.ID(), "relay", relayConn.RemotePeer().ShortString(), "dst", dst.ID.ShortString())
	return c, nil
}

// CanHop 探测 relayConn 的对端是否愿意中继
func (s *Service) CanHop(ctx context.Context, relayConn interfaces.Conn) bool {
	return canHop(ctx, relayConn, s.cfg.MaxMessageSize)
}

// Listener 返回入站电路队列
func (s *Service) Listener() *Listener {
	return s.listener
}

// Accept 等待下一条入站电路
func (s *Service) Accept(ctx context.Context) (*Conn, error) {
	return s.listener.Accept(ctx)
}

// Config 返回服务配置
func (s *Service) Config() Config {
	return s.cfg
}

// ============================================================================
//                              电路登记
// ============================================================================

func (s *Service) addCircuit(c *circuit) {
	s.circuitsMu.Lock()
	s.circuits[c.id] = c
	s.circuitsMu.Unlock()

	s.totalCircuits.Add(1)
	s.metrics.CircuitOpened()
}

func (s *Service) removeCircuit(c *circuit) {
	s.circuitsMu.Lock()
	delete(s.circuits, c.id)
	s.circuitsMu.Unlock()

	s.metrics.CircuitClosed(s.clock.Since(c.started))
}

// Circuits 返回中继侧正在拼接的电路快照
func (s *Service) Circuits() []CircuitInfo {
	s.circuitsMu.RLock()
	defer s.circuitsMu.RUnlock()

	out := make([]CircuitInfo, 0, len(s.circuits))
	for _, c := range s.circuits {
		out = append(out, CircuitInfo{
			ID:      c.id,
			Src:     c.src,
			Dst:     c.dst,
			Started: c.started,
			Bytes:   c.bytes.Load(),
		})
	}
	return out
}

// Stats 返回服务统计
func (s *Service) Stats() Stats {
	s.circuitsMu.RLock()
	active := len(s.circuits)
	s.circuitsMu.RUnlock()

	return Stats{
		ActiveCircuits: active,
		TotalCircuits:  s.totalCircuits.Load(),
		BytesRelayed:   s.bytesRelayed.Load(),
	}
}
