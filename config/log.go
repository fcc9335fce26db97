package config

import (
	"fmt"

	"github.com/dep2p/go-circuit/internal/util/logger"
)

// LogConfig 日志配置
//
// 启动时覆盖 CIRCUIT_LOG_LEVEL / CIRCUIT_LOG_FORMAT 给出的默认值。
// 字段为空表示沿用环境变量。
type LogConfig struct {
	// Level 级别配置串，语法同 CIRCUIT_LOG_LEVEL，例如 "relay=debug,info"
	Level string `mapstructure:"level" json:"level,omitempty"`

	// Format 输出格式：text 或 json
	Format string `mapstructure:"format" json:"format,omitempty"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{}
}

// Validate 验证日志配置
func (c LogConfig) Validate() error {
	if c.Level != "" {
		if _, _, err := logger.ParseLevelSpec(c.Level); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}
	if _, err := logger.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// Apply 把日志配置应用到全局 logger
func (c LogConfig) Apply() error {
	return logger.Configure(c.Level, c.Format)
}
