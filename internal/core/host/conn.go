package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	mss "github.com/multiformats/go-multistream"

	"github.com/dep2p/go-circuit/internal/core/muxer/yamux"
	"github.com/dep2p/go-circuit/internal/core/security/noise"
	"github.com/dep2p/go-circuit/pkg/interfaces"
	"github.com/dep2p/go-circuit/pkg/types"
)

// conn 已加密、已多路复用的连接
type conn struct {
	host       *Host
	secure     noise.SecureConn
	muxer      *yamux.Muxer
	remoteAddr ma.Multiaddr
	inbound    bool

	closeOnce sync.Once
	closeErr  error
}

var _ interfaces.Conn = (*conn)(nil)

// RemotePeer 返回经 Noise 握手验证的对端 ID
func (c *conn) RemotePeer() types.PeerID {
	return c.secure.RemotePeer()
}

// RemoteMultiaddr 返回对端地址
func (c *conn) RemoteMultiaddr() ma.Multiaddr {
	return c.remoteAddr
}

// NewStream 打开新流并协商协议
func (c *conn) NewStream(ctx context.Context, protocol types.ProtocolID) (interfaces.Stream, error) {
	s, err := c.muxer.NewStream(ctx)
	if err != nil {
		return nil, err
	}

	// ctx 结束时中断协商
	stop := context.AfterFunc(ctx, func() { _ = s.SetDeadline(time.Now()) })
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(deadline)
	}

	_, err = mss.SelectOneOf([]string{string(protocol)}, s)

	if !stop() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = s.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("协议协商失败 %s: %w", protocol, err)
	}
	_ = s.SetDeadline(time.Time{})

	return s, nil
}

// Close 关闭连接及其上的全部流，并从注册表移除
func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		// 会话关闭时底层连接随之关闭
		c.closeErr = c.muxer.Close()
		_ = c.secure.Close()
		c.host.removeConn(c)
		log.Debug("连接已关闭", "peer", c.RemotePeer().ShortString(), "inbound", c.inbound)
	})
	return c.closeErr
}

// IsClosed 检查连接是否已关闭
func (c *conn) IsClosed() bool {
	return c.muxer.IsClosed()
}

func (c *conn) String() string {
	dir := "outbound"
	if c.inbound {
		dir = "inbound"
	}
	return fmt.Sprintf("<host.conn %s %s (%s)>", c.RemotePeer().ShortString(), c.remoteAddr, dir)
}
