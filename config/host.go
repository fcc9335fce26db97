package config

import (
	"errors"
	"time"
)

// HostConfig 连接层配置
type HostConfig struct {
	// DialTimeout 拨号超时（含身份交换）
	DialTimeout time.Duration `mapstructure:"dial_timeout" json:"dial_timeout"`

	// HandshakeTimeout 入站连接身份交换超时
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" json:"handshake_timeout"`

	// KeepAliveInterval yamux 心跳间隔，0 表示关闭心跳
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval" json:"keep_alive_interval"`

	// MaxStreamWindowSize yamux 单流接收窗口
	MaxStreamWindowSize uint32 `mapstructure:"max_stream_window_size" json:"max_stream_window_size"`
}

// DefaultHostConfig 返回默认连接层配置
func DefaultHostConfig() HostConfig {
	return HostConfig{
		DialTimeout:         15 * time.Second,
		HandshakeTimeout:    10 * time.Second,
		KeepAliveInterval:   30 * time.Second,
		MaxStreamWindowSize: 16 << 20, // 16 MiB
	}
}

// Validate 验证连接层配置
func (c HostConfig) Validate() error {
	if c.DialTimeout <= 0 {
		return errors.New("host: dial_timeout must be positive")
	}
	if c.HandshakeTimeout <= 0 {
		return errors.New("host: handshake_timeout must be positive")
	}
	if c.KeepAliveInterval < 0 {
		return errors.New("host: keep_alive_interval must be non-negative")
	}
	// yamux 要求窗口不小于初始值 256 KiB
	if c.MaxStreamWindowSize < 256*1024 {
		return errors.New("host: max_stream_window_size must be at least 256KiB")
	}
	return nil
}
