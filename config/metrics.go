package config

import (
	"errors"
	"net"
)

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// Enabled 是否采集并暴露指标
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// Addr HTTP 监听地址，例如 "127.0.0.1:9464"
	Addr string `mapstructure:"addr" json:"addr"`

	// Path 指标路径
	Path string `mapstructure:"path" json:"path"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled: false,
		Addr:    "127.0.0.1:9464",
		Path:    "/metrics",
	}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return errors.New("metrics: addr must be host:port")
	}
	if len(c.Path) == 0 || c.Path[0] != '/' {
		return errors.New("metrics: path must start with /")
	}
	return nil
}
