package relay

import (
	"fmt"
	"time"

	"github.com/dep2p/go-circuit/config"
)

// Config 中继服务配置
//
// 构造 Service 时传入，之后只读。
type Config struct {
	// HopEnabled 是否为其他节点中继
	HopEnabled bool

	// HopActive 主动中继模式标志
	HopActive bool

	// MaxMessageSize 协商消息最大帧长
	MaxMessageSize int

	// BufferSize 拼接缓冲区大小
	BufferSize int

	// MaxBandwidth 每条电路每个方向的字节/秒上限，0 不限制
	MaxBandwidth int64

	// StreamTimeout 中继侧协商超时，0 不限制
	StreamTimeout time.Duration

	// AcceptBacklog 目标侧待 Accept 的电路上限
	AcceptBacklog int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		HopEnabled:     false,
		HopActive:      false,
		MaxMessageSize: DefaultMaxMessageSize,
		BufferSize:     DefaultBufferSize,
		MaxBandwidth:   0,
		StreamTimeout:  DefaultStreamTimeout,
		AcceptBacklog:  DefaultAcceptBacklog,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: max message size must be positive", ErrInvalidConfig)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("%w: buffer size must be positive", ErrInvalidConfig)
	}
	if c.MaxBandwidth < 0 {
		return fmt.Errorf("%w: max bandwidth must be non-negative", ErrInvalidConfig)
	}
	if c.StreamTimeout < 0 {
		return fmt.Errorf("%w: stream timeout must be non-negative", ErrInvalidConfig)
	}
	if c.AcceptBacklog <= 0 {
		return fmt.Errorf("%w: accept backlog must be positive", ErrInvalidConfig)
	}
	return nil
}

// ConfigFromUnified 从统一配置提取中继配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	r := cfg.Relay
	return Config{
		HopEnabled:     r.HopEnabled,
		HopActive:      r.HopActive,
		MaxMessageSize: r.MaxMessageSize,
		BufferSize:     r.BufferSize,
		MaxBandwidth:   r.MaxBandwidth,
		StreamTimeout:  r.StreamTimeout,
		AcceptBacklog:  r.AcceptBacklog,
	}
}
