package config

import (
	"errors"
	"time"
)

// RelayConfig 中继配置
//
// HopEnabled / HopActive 是只读能力标志，启动时传入中继服务，
// 运行期间不会改变。
type RelayConfig struct {
	// HopEnabled 是否为其他节点提供中继
	HopEnabled bool `mapstructure:"hop_enabled" json:"hop_enabled"`

	// HopActive 主动中继模式
	// 当前实现中无到目标的连接时仍拒绝，保留该标志以兼容配置
	HopActive bool `mapstructure:"hop_active" json:"hop_active"`

	// MaxMessageSize 协商消息最大帧长（字节）
	MaxMessageSize int `mapstructure:"max_message_size" json:"max_message_size"`

	// BufferSize 拼接时每个方向的拷贝缓冲区（字节）
	BufferSize int `mapstructure:"buffer_size" json:"buffer_size"`

	// MaxBandwidth 每条电路每个方向的带宽上限（字节/秒），0 表示不限制
	MaxBandwidth int64 `mapstructure:"max_bandwidth" json:"max_bandwidth"`

	// StreamTimeout 中继侧 HOP / STOP 协商超时，0 表示不限制
	StreamTimeout time.Duration `mapstructure:"stream_timeout" json:"stream_timeout"`

	// AcceptBacklog 目标侧待 Accept 的中继连接上限
	AcceptBacklog int `mapstructure:"accept_backlog" json:"accept_backlog"`
}

// DefaultRelayConfig 返回默认中继配置
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		HopEnabled:     false,            // 默认不为他人中继
		HopActive:      false,
		MaxMessageSize: 4096,             // 协商帧上限：4 KiB
		BufferSize:     16 * 1024,        // 拼接缓冲区：16 KiB
		MaxBandwidth:   0,                // 不限速
		StreamTimeout:  30 * time.Second, // 协商超时：30 秒
		AcceptBacklog:  32,
	}
}

// Validate 验证中继配置
func (c RelayConfig) Validate() error {
	if c.MaxMessageSize < 64 {
		return errors.New("relay: max_message_size must be at least 64")
	}
	if c.BufferSize < 1024 {
		return errors.New("relay: buffer_size must be at least 1024")
	}
	if c.MaxBandwidth < 0 {
		return errors.New("relay: max_bandwidth must be non-negative")
	}
	if c.StreamTimeout < 0 {
		return errors.New("relay: stream_timeout must be non-negative")
	}
	if c.AcceptBacklog < 1 {
		return errors.New("relay: accept_backlog must be at least 1")
	}
	return nil
}
