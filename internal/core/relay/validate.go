package relay

import (
	ma "github.com/multiformats/go-multiaddr"

	pb "github.com/dep2p/go-circuit/pkg/lib/proto/circuit"
)

// validateAddrs 校验 HOP / STOP 消息中的地址列表
//
// 先校验 dstPeer.addrs 再校验 srcPeer.addrs。遇到第一个无法解析的地址时，
// 按消息类型回复对应的 *_MULTIADDR_INVALID 状态码并关闭通道，返回 false。
func validateAddrs(msg *pb.CircuitRelay, ch *StreamHandler) bool {
	isHop := msg.GetType() == pb.CircuitRelay_HOP

	if !addrsValid(msg.GetDstPeer().GetAddrs()) {
		code := pb.CircuitRelay_STOP_DST_MULTIADDR_INVALID
		if isHop {
			code = pb.CircuitRelay_HOP_DST_MULTIADDR_INVALID
		}
		_ = ch.End(statusMsg(code))
		return false
	}

	if !addrsValid(msg.GetSrcPeer().GetAddrs()) {
		code := pb.CircuitRelay_STOP_SRC_MULTIADDR_INVALID
		if isHop {
			code = pb.CircuitRelay_HOP_SRC_MULTIADDR_INVALID
		}
		_ = ch.End(statusMsg(code))
		return false
	}

	return true
}

func addrsValid(addrs [][]byte) bool {
	for _, a := range addrs {
		if _, err := ma.NewMultiaddrBytes(a); err != nil {
			return false
		}
	}
	return true
}

// statusMsg 构造 STATUS 消息
func statusMsg(code pb.CircuitRelay_Status) *pb.CircuitRelay {
	return &pb.CircuitRelay{
		Type: pb.CircuitRelay_STATUS,
		Code: code,
	}
}
