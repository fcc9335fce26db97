package noise

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/dep2p/go-circuit/internal/core/identity"
	"github.com/dep2p/go-circuit/internal/util/logger"
	"github.com/dep2p/go-circuit/pkg/types"
)

var log = logger.Logger("security/noise")

// ProtocolID 安全通道协议标识
const ProtocolID = types.ProtocolID("/noise")

// SecureConn 握手完成的安全连接
type SecureConn interface {
	net.Conn

	// LocalPeer 返回本地节点 ID
	LocalPeer() types.PeerID

	// RemotePeer 返回经过验证的远端节点 ID
	RemotePeer() types.PeerID
}

// Transport Noise 安全传输
type Transport struct {
	identity *identity.Identity
}

// New 创建 Noise 传输
func New(id *identity.Identity) (*Transport, error) {
	if id == nil {
		return nil, errors.New("noise: identity is nil")
	}
	return &Transport{identity: id}, nil
}

// ID 返回协议标识
func (t *Transport) ID() types.ProtocolID {
	return ProtocolID
}

// SecureInbound 保护入站连接，remotePeer 可为空
func (t *Transport) SecureInbound(ctx context.Context, conn net.Conn, remotePeer types.PeerID) (SecureConn, error) {
	return t.secure(ctx, conn, remotePeer, false)
}

// SecureOutbound 保护出站连接，remotePeer 非空时校验对端身份
func (t *Transport) SecureOutbound(ctx context.Context, conn net.Conn, remotePeer types.PeerID) (SecureConn, error) {
	return t.secure(ctx, conn, remotePeer, true)
}

func (t *Transport) secure(ctx context.Context, conn net.Conn, remotePeer types.PeerID, initiator bool) (SecureConn, error) {
	if conn == nil {
		return nil, errors.New("noise: conn is nil")
	}

	dir := "inbound"
	if initiator {
		dir = "outbound"
	}
	log.Debug("Noise 握手", "dir", dir, "remote", conn.RemoteAddr().String())

	// ctx 结束时让阻塞中的读写立即返回
	stopWatch := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })

	sc, err := performHandshake(conn, t.identity, remotePeer, initiator)

	if !stopWatch() && err == nil {
		err = ctx.Err()
	}
	_ = conn.SetDeadline(time.Time{})

	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		log.Debug("Noise 握手失败", "dir", dir, "remote", conn.RemoteAddr().String(), "err", err)
		return nil, fmt.Errorf("noise handshake: %w", err)
	}

	log.Debug("Noise 握手成功", "dir", dir, "peer", sc.RemotePeer().ShortString())
	return sc, nil
}
