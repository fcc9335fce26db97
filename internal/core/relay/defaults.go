package relay

import "time"

const (
	// DefaultMaxMessageSize 协商帧上限
	DefaultMaxMessageSize = 4096

	// DefaultBufferSize 拼接缓冲区
	DefaultBufferSize = 16 * 1024

	// DefaultStreamTimeout 中继侧协商超时
	DefaultStreamTimeout = 30 * time.Second

	// DefaultAcceptBacklog 目标侧 Accept 队列长度
	DefaultAcceptBacklog = 32
)
