// Package yamux 在安全连接之上提供 hashicorp/yamux 流多路复用
package yamux

import (
	"io"
	"time"

	"github.com/hashicorp/yamux"

	"github.com/dep2p/go-circuit/config"
)

const (
	// 中继节点上每条连接可能同时承载大量电路，入站流队列放宽
	acceptBacklog = 512

	// 协商流需快速打开，超时后由 relay 层判定失败
	streamOpenTimeout = 30 * time.Second

	// 拼接结束后双向关闭，半关闭流不应长期占用
	streamCloseTimeout = 30 * time.Second

	connWriteTimeout = 10 * time.Second

	// yamux 协议规定的初始窗口
	initialWindow uint32 = 256 * 1024
)

func defaultConfig() *yamux.Config {
	cfg := yamux.DefaultConfig()
	cfg.AcceptBacklog = acceptBacklog
	cfg.StreamOpenTimeout = streamOpenTimeout
	cfg.StreamCloseTimeout = streamCloseTimeout
	cfg.ConnectionWriteTimeout = connWriteTimeout
	cfg.MaxStreamWindowSize = initialWindow
	cfg.LogOutput = io.Discard
	return cfg
}

// ConfigFromHost 由连接层配置生成 yamux 配置
//
// KeepAliveInterval 为 0 时关闭心跳；窗口未设置时使用初始窗口。
func ConfigFromHost(cfg config.HostConfig) *yamux.Config {
	yc := defaultConfig()
	if cfg.MaxStreamWindowSize > initialWindow {
		yc.MaxStreamWindowSize = cfg.MaxStreamWindowSize
	}
	yc.EnableKeepAlive = cfg.KeepAliveInterval > 0
	if yc.EnableKeepAlive {
		yc.KeepAliveInterval = cfg.KeepAliveInterval
	}
	return yc
}
