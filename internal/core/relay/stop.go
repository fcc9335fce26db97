package relay

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/dep2p/go-circuit/pkg/interfaces"
	pb "github.com/dep2p/go-circuit/pkg/lib/proto/circuit"
)

// ============================================================================
//                              STOP 发起方（中继侧）
// ============================================================================

// Stop 请求 conn 对端（目标节点）接受一条中继电路
//
// 目标节点接受时返回原始流用于拼接。没有响应或被拒绝时返回 (nil, nil)，
// 表示"没有可用的流"，属于正常的否定结果；传输错误与取消返回 error。
// 两种失败情况下打开的流都已关闭。
func Stop(ctx context.Context, conn interfaces.Conn, req *pb.CircuitRelay) (interfaces.Stream, error) {
	return stop(ctx, conn, req, DefaultMaxMessageSize)
}

func stop(ctx context.Context, conn interfaces.Conn, req *pb.CircuitRelay, maxSize int) (interfaces.Stream, error) {
	ch, resp, err := exchange(ctx, conn, req, maxSize)
	if err != nil {
		if errors.Is(err, io.EOF) {
			log.Debug("STOP 请求无响应", "peer", conn.RemotePeer().ShortString())
			return nil, nil
		}
		return nil, err
	}

	if code := resp.GetCode(); code != pb.CircuitRelay_SUCCESS {
		log.Debug("STOP 请求被拒绝", "peer", conn.RemotePeer().ShortString(), "code", code)
		_ = ch.Close()
		return nil, nil
	}

	raw := ch.Rest()
	if raw == nil {
		return nil, nil
	}
	log.Debug("STOP 请求成功", "peer", conn.RemotePeer().ShortString())
	return raw, nil
}

// ============================================================================
//                              STOP 响应方（目标节点）
// ============================================================================

// handleStop 处理中继发来的 STOP 请求
//
// 校验通过后回复 SUCCESS 并返回原始流，交给本地应用；校验失败时
// 已回复状态码，返回 nil。
func (s *Service) handleStop(conn interfaces.Conn, msg *pb.CircuitRelay, ch *StreamHandler) interfaces.Stream {
	if !validateAddrs(msg, ch) {
		log.Debug("STOP 请求地址非法", "relay", conn.RemotePeer().ShortString())
		s.metrics.RequestHandled(pb.CircuitRelay_STOP, "invalid_addrs")
		return nil
	}
	if msg.GetDstPeer() == nil {
		log.Debug("STOP 请求缺少 dstPeer，放弃处理", "relay", conn.RemotePeer().ShortString())
		s.metrics.RequestHandled(pb.CircuitRelay_STOP, outcomeAbandoned)
		return nil
	}

	if err := ch.WriteMsg(statusMsg(pb.CircuitRelay_SUCCESS)); err != nil {
		log.Debug("回复 STOP 成功失败", "relay", conn.RemotePeer().ShortString(), "err", err)
		s.metrics.RequestHandled(pb.CircuitRelay_STOP, outcomeWriteError)
		return nil
	}
	s.metrics.RequestHandled(pb.CircuitRelay_STOP, pb.CircuitRelay_SUCCESS.String())

	ch.SetDeadline(time.Time{})
	return ch.Rest()
}
