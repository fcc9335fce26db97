// Package config 提供统一的配置管理
//
// 主 Config 结构体嵌入所有子配置，每个子配置在独立文件中定义，
// 各自提供 DefaultXxxConfig() 与 Validate()。
//
// 使用示例：
//
//	// 默认配置
//	cfg := config.DefaultConfig()
//	cfg.Relay.HopEnabled = true
//
//	// 从文件加载（YAML / JSON / TOML，按扩展名识别）
//	cfg, err := config.Load("circuit.yaml")
package config

import (
	"errors"
	"fmt"

	ma "github.com/multiformats/go-multiaddr"
)

// Config 是 go-circuit 节点的完整配置
//
//   - Listen: 监听地址（multiaddr）
//   - KnownPeers: 启动后主动连接的节点
//   - Identity: 节点身份
//   - Host: 连接层参数
//   - Relay: 中继协议参数
//   - Log: 日志
//   - Metrics: Prometheus 指标
type Config struct {
	// Listen 监听地址列表，例如 "/ip4/0.0.0.0/tcp/4001"
	Listen []string `mapstructure:"listen" json:"listen"`

	// KnownPeers 启动时直接连接的节点地址
	KnownPeers []string `mapstructure:"known_peers" json:"known_peers,omitempty"`

	// Identity 身份配置
	Identity IdentityConfig `mapstructure:"identity" json:"identity"`

	// Host 连接层配置
	Host HostConfig `mapstructure:"host" json:"host"`

	// Relay 中继配置
	Relay RelayConfig `mapstructure:"relay" json:"relay"`

	// Log 日志配置
	Log LogConfig `mapstructure:"log" json:"log"`

	// Metrics 指标配置
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`
}

// DefaultConfig 创建默认配置
func DefaultConfig() *Config {
	return &Config{
		Listen:   []string{"/ip4/0.0.0.0/tcp/4001"},
		Identity: DefaultIdentityConfig(),
		Host:     DefaultHostConfig(),
		Relay:    DefaultRelayConfig(),
		Log:      DefaultLogConfig(),
		Metrics:  DefaultMetricsConfig(),
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	for _, s := range c.Listen {
		if _, err := ma.NewMultiaddr(s); err != nil {
			return fmt.Errorf("config: invalid listen address %q: %w", s, err)
		}
	}
	for _, s := range c.KnownPeers {
		if _, err := ma.NewMultiaddr(s); err != nil {
			return fmt.Errorf("config: invalid known peer address %q: %w", s, err)
		}
	}

	return errors.Join(
		c.Identity.Validate(),
		c.Host.Validate(),
		c.Relay.Validate(),
		c.Log.Validate(),
		c.Metrics.Validate(),
	)
}

// ListenMultiaddrs 返回解析后的监听地址
func (c *Config) ListenMultiaddrs() ([]ma.Multiaddr, error) {
	return parseAddrs(c.Listen)
}

// KnownPeerMultiaddrs 返回解析后的已知节点地址
func (c *Config) KnownPeerMultiaddrs() ([]ma.Multiaddr, error) {
	return parseAddrs(c.KnownPeers)
}

func parseAddrs(ss []string) ([]ma.Multiaddr, error) {
	out := make([]ma.Multiaddr, 0, len(ss))
	for _, s := range ss {
		a, err := ma.NewMultiaddr(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
