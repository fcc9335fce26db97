package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-circuit/pkg/interfaces"
	pb "github.com/dep2p/go-circuit/pkg/lib/proto/circuit"
	"github.com/dep2p/go-circuit/pkg/protocolids"
	"github.com/dep2p/go-circuit/pkg/types"
)

// peerToPB 把 AddrInfo 转成协议消息中的 Peer
func peerToPB(ai types.AddrInfo) *pb.CircuitRelay_Peer {
	return &pb.CircuitRelay_Peer{
		Id:    ai.ID.Bytes(),
		Addrs: ai.AddrBytes(),
	}
}

// peerFromPB 解码协议消息中的 Peer
//
// 地址已由 validateAddrs 校验过，这里跳过无法解析的地址，只有 ID
// 非法时返回错误。
func peerFromPB(p *pb.CircuitRelay_Peer) (types.AddrInfo, error) {
	id, err := types.PeerIDFromBytes(p.GetId())
	if err != nil {
		return types.AddrInfo{}, err
	}
	ai := types.AddrInfo{ID: id}
	for _, b := range p.GetAddrs() {
		if a, err := ma.NewMultiaddrBytes(b); err == nil {
			ai.Addrs = append(ai.Addrs, a)
		}
	}
	return ai, nil
}

// NewHopRequest 构造 HOP 请求
func NewHopRequest(src, dst types.AddrInfo) *pb.CircuitRelay {
	return &pb.CircuitRelay{
		Type:    pb.CircuitRelay_HOP,
		SrcPeer: peerToPB(src),
		DstPeer: peerToPB(dst),
	}
}

// exchange 打开一条协商流，发送 req 并读取一条响应
//
// ctx 取消时关闭在途的流并返回 ctx.Err()。没有响应时返回 io.EOF，
// 对端在请求写完前关闭流同样视为没有响应。
// 成功时返回的通道仍处于分帧状态，由调用方决定 Rest 或 Close。
func exchange(ctx context.Context, conn interfaces.Conn, req *pb.CircuitRelay, maxSize int) (*StreamHandler, *pb.CircuitRelay, error) {
	s, err := conn.NewStream(ctx, protocolids.Relay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, fmt.Errorf("relay: open stream: %w", err)
	}

	ch := NewStreamHandler(s, maxSize)
	stopWatch := context.AfterFunc(ctx, func() { _ = ch.Close() })

	err = ch.WriteMsg(req)
	if err != nil && peerClosed(err) {
		// 对端未读请求就关闭了流，与没有响应相同
		_ = ch.Close()
		err = io.EOF
	}
	var resp *pb.CircuitRelay
	if err == nil {
		resp, err = ch.ReadMsg()
	}

	if !stopWatch() {
		// ctx 已触发，通道正在或已经关闭
		_ = ch.Close()
		return nil, nil, ctx.Err()
	}
	if err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	return ch, resp, nil
}

// peerClosed 判断写错误是否由对端关闭流引起
func peerClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed)
}
