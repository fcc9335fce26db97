package relay

import (
	"context"

	"github.com/dep2p/go-circuit/pkg/interfaces"
	pb "github.com/dep2p/go-circuit/pkg/lib/proto/circuit"
)

// CanHop 询问 conn 对端当前是否愿意中继
//
// 探测是建议性的：打开流失败、传输错误、没有响应或被取消都视为 false，
// 不返回错误。
func CanHop(ctx context.Context, conn interfaces.Conn) bool {
	return canHop(ctx, conn, DefaultMaxMessageSize)
}

func canHop(ctx context.Context, conn interfaces.Conn, maxSize int) bool {
	ch, resp, err := exchange(ctx, conn, &pb.CircuitRelay{Type: pb.CircuitRelay_CAN_HOP}, maxSize)
	if err != nil {
		log.Debug("CAN_HOP 探测失败", "peer", conn.RemotePeer().ShortString(), "err", err)
		return false
	}
	_ = ch.Close()

	return resp.GetCode() == pb.CircuitRelay_SUCCESS
}

// handleCanHop 回复 CAN_HOP 探测并关闭通道
func (s *Service) handleCanHop(conn interfaces.Conn, ch *StreamHandler) {
	code := pb.CircuitRelay_HOP_CANT_SPEAK_RELAY
	if s.cfg.HopEnabled {
		code = pb.CircuitRelay_SUCCESS
	}
	log.Debug("收到 CAN_HOP", "peer", conn.RemotePeer().ShortString(), "can_hop", s.cfg.HopEnabled)

	_ = ch.End(statusMsg(code))
	s.metrics.RequestHandled(pb.CircuitRelay_CAN_HOP, code.String())
}
