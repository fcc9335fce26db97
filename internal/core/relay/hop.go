package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/dep2p/go-circuit/pkg/interfaces"
	pb "github.com/dep2p/go-circuit/pkg/lib/proto/circuit"
	"github.com/dep2p/go-circuit/pkg/types"
)

// 未能进入状态码分支时的结果标签
const (
	outcomeAbandoned  = "abandoned"
	outcomeStopFailed = "stop_failed"
	outcomeWriteError = "write_error"
)

// ============================================================================
//                              HOP 发起方（源节点）
// ============================================================================

// Hop 请求 conn 对端中继到 req.DstPeer
//
// 成功时返回仍处于分帧状态的通道，调用方通过 Rest 取得电路流。
// 失败时返回的错误满足 errors.Is(err, ErrHopRequestFailed)；中继明确
// 拒绝时错误为 *HopError，携带收到的状态码。
func Hop(ctx context.Context, conn interfaces.Conn, req *pb.CircuitRelay) (*StreamHandler, error) {
	return hop(ctx, conn, req, DefaultMaxMessageSize)
}

func hop(ctx context.Context, conn interfaces.Conn, req *pb.CircuitRelay, maxSize int) (*StreamHandler, error) {
	ch, resp, err := exchange(ctx, conn, req, maxSize)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no response", ErrHopRequestFailed)
		}
		return nil, fmt.Errorf("%w: %w", ErrHopRequestFailed, err)
	}

	if code := resp.GetCode(); code != pb.CircuitRelay_SUCCESS {
		log.Debug("HOP 请求被拒绝", "relay", conn.RemotePeer().ShortString(), "code", code)
		_ = ch.Close()
		return nil, &HopError{Code: code}
	}

	log.Debug("HOP 请求成功", "relay", conn.RemotePeer().ShortString())
	return ch, nil
}

// ============================================================================
//                              HOP 响应方（中继角色）
// ============================================================================

// handleHop 处理源节点的 HOP 请求
//
// RECEIVED → VALIDATED → RESOLVING_DESTINATION → REQUESTING_STOP → SPLICING → CLOSED
func (s *Service) handleHop(conn interfaces.Conn, msg *pb.CircuitRelay, ch *StreamHandler) {
	src := conn.RemotePeer()

	// RECEIVED
	if !s.cfg.HopEnabled {
		log.Debug("收到 HOP 请求，但本节点未启用中继", "src", src.ShortString())
		s.reject(ch, pb.CircuitRelay_HOP, pb.CircuitRelay_HOP_CANT_SPEAK_RELAY)
		return
	}

	// VALIDATED
	if !validateAddrs(msg, ch) {
		log.Debug("HOP 请求地址非法", "src", src.ShortString())
		s.metrics.RequestHandled(pb.CircuitRelay_HOP, "invalid_addrs")
		return
	}
	if msg.GetDstPeer() == nil {
		log.Debug("HOP 请求缺少 dstPeer，放弃处理", "src", src.ShortString())
		s.metrics.RequestHandled(pb.CircuitRelay_HOP, outcomeAbandoned)
		return
	}

	// RESOLVING_DESTINATION
	dst, err := types.PeerIDFromBytes(msg.GetDstPeer().GetId())
	if err != nil {
		// 与缺少 dstPeer 相同，不回复状态码
		log.Debug("HOP 请求 dstPeer.id 非法，放弃处理", "src", src.ShortString(), "err", err)
		s.metrics.RequestHandled(pb.CircuitRelay_HOP, outcomeAbandoned)
		return
	}

	conns := s.host.Connections(dst)
	if len(conns) == 0 {
		// TODO: HopActive 时主动拨号目标节点，当前无论标志如何都拒绝
		log.Debug("HOP 请求目标无连接", "src", src.ShortString(), "dst", dst.ShortString(), "hop_active", s.cfg.HopActive)
		s.reject(ch, pb.CircuitRelay_HOP, pb.CircuitRelay_HOP_NO_CONN_TO_DST)
		return
	}

	// REQUESTING_STOP
	stopReq := &pb.CircuitRelay{
		Type:    pb.CircuitRelay_STOP,
		SrcPeer: msg.GetSrcPeer(),
		DstPeer: msg.GetDstPeer(),
	}
	ctx, cancel := s.negotiationContext()
	dstStream, err := stop(ctx, conns[0], stopReq, s.cfg.MaxMessageSize)
	cancel()
	if err != nil || dstStream == nil {
		// 不向源节点回复状态码，由调用方关闭源流
		log.Debug("STOP 请求失败", "src", src.ShortString(), "dst", dst.ShortString(), "err", err)
		s.metrics.RequestHandled(pb.CircuitRelay_HOP, outcomeStopFailed)
		return
	}

	// SPLICING
	if err := ch.WriteMsg(statusMsg(pb.CircuitRelay_SUCCESS)); err != nil {
		log.Debug("回复 HOP 成功失败", "src", src.ShortString(), "err", err)
		_ = dstStream.Close()
		s.metrics.RequestHandled(pb.CircuitRelay_HOP, outcomeWriteError)
		return
	}
	s.metrics.RequestHandled(pb.CircuitRelay_HOP, pb.CircuitRelay_SUCCESS.String())

	ch.SetDeadline(time.Time{})
	srcStream := ch.Rest()
	if srcStream == nil {
		// 服务关闭时源流已被关闭
		_ = dstStream.Close()
		return
	}
	s.runCircuit(src, dst, srcStream, dstStream)
}

// reject 回复状态码并关闭通道
func (s *Service) reject(ch *StreamHandler, t pb.CircuitRelay_Type, code pb.CircuitRelay_Status) {
	_ = ch.End(statusMsg(code))
	s.metrics.RequestHandled(t, code.String())
}

// negotiationContext 中继侧协商使用的上下文，受 StreamTimeout 约束
func (s *Service) negotiationContext() (context.Context, context.CancelFunc) {
	if s.cfg.StreamTimeout > 0 {
		return context.WithTimeout(s.ctx, s.cfg.StreamTimeout)
	}
	return context.WithCancel(s.ctx)
}

// runCircuit 拼接源流与目标流，直到任意一侧结束
func (s *Service) runCircuit(src, dst types.PeerID, srcStream, dstStream interfaces.Stream) {
	c := &circuit{
		id:      uuid.NewString(),
		src:     src,
		dst:     dst,
		started: s.clock.Now(),
	}
	s.addCircuit(c)
	defer s.removeCircuit(c)

	log.Info("电路已建立", "id", c.id, "src", src.ShortString(), "dst", dst.ShortString())

	err := Splice(s.ctx, srcStream, dstStream,
		WithBufferSize(s.cfg.BufferSize),
		WithBandwidthLimit(s.cfg.MaxBandwidth),
		WithByteCounter(func(dir Direction, n int) {
			c.bytes.Add(int64(n))
			s.bytesRelayed.Add(int64(n))
			s.metrics.BytesRelayed(dir, n)
		}),
	)

	log.Debug("电路关闭", "id", c.id, "bytes", c.bytes.Load(), "duration", s.clock.Since(c.started), "err", err)
}
