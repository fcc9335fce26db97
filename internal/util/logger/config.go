package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// 环境变量
const (
	EnvLevel     = "CIRCUIT_LOG_LEVEL"
	EnvFormat    = "CIRCUIT_LOG_FORMAT"
	EnvAddSource = "CIRCUIT_LOG_ADD_SOURCE"
)

// LogFormat 日志输出格式
type LogFormat int32

const (
	// FormatText 文本格式（默认）
	FormatText LogFormat = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Config 日志配置
type Config struct {
	mu sync.RWMutex

	// DefaultLevel 默认日志级别
	DefaultLevel slog.Level

	// SubsystemLevels 各子系统的日志级别
	SubsystemLevels map[string]slog.Level

	// Format 输出格式
	Format LogFormat

	// AddSource 是否添加源码位置
	AddSource bool
}

// LevelForSubsystem 获取指定子系统的日志级别
func (c *Config) LevelForSubsystem(subsystem string) slog.Level {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if level, ok := c.SubsystemLevels[subsystem]; ok {
		return level
	}
	return c.DefaultLevel
}

func (c *Config) setSubsystemLevel(subsystem string, level slog.Level) {
	c.mu.Lock()
	c.SubsystemLevels[subsystem] = level
	c.mu.Unlock()
}

func (c *Config) setDefaultLevel(level slog.Level) {
	c.mu.Lock()
	c.DefaultLevel = level
	c.mu.Unlock()
}

var (
	configCache *Config
	configOnce  sync.Once
)

// ConfigFromEnv 从环境变量解析配置（进程内只解析一次）
//
//   - CIRCUIT_LOG_LEVEL: 子系统=级别,子系统=级别,默认级别
//     示例: relay=debug,host=warn,info
//   - CIRCUIT_LOG_FORMAT: text 或 json
//   - CIRCUIT_LOG_ADD_SOURCE: true 或 false
func ConfigFromEnv() *Config {
	configOnce.Do(func() {
		configCache = parseConfig()
		globalFormat.Store(int32(configCache.Format))
	})
	return configCache
}

func parseConfig() *Config {
	cfg := &Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
		Format:          FormatText,
	}

	if spec := os.Getenv(EnvLevel); spec != "" {
		// 环境变量中的非法项直接忽略，合法项照常生效
		def, subs, _ := ParseLevelSpec(spec)
		if def != nil {
			cfg.DefaultLevel = *def
		}
		for k, v := range subs {
			cfg.SubsystemLevels[k] = v
		}
	}

	if s := os.Getenv(EnvFormat); s != "" {
		if f, err := ParseFormat(s); err == nil {
			cfg.Format = f
		}
	}

	if s := os.Getenv(EnvAddSource); s != "" {
		cfg.AddSource = s != "false" && s != "0"
	}

	return cfg
}

// ParseLevelSpec 解析级别配置串
//
// 格式: subsystem=level,subsystem=level,defaultLevel。
// 返回默认级别（未出现时为 nil）与子系统级别；遇到非法级别名时
// 返回已解析部分和错误。
func ParseLevelSpec(spec string) (*slog.Level, map[string]slog.Level, error) {
	var (
		def    *slog.Level
		subs   = make(map[string]slog.Level)
		badErr error
	)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, levelName, isSub := strings.Cut(part, "=")
		if !isSub {
			levelName = name
		}
		level, ok := parseLevel(strings.TrimSpace(levelName))
		if !ok {
			if badErr == nil {
				badErr = fmt.Errorf("logger: unknown level %q", levelName)
			}
			continue
		}
		if isSub {
			subs[strings.TrimSpace(name)] = level
		} else {
			l := level
			def = &l
		}
	}
	return def, subs, badErr
}

// ParseFormat 解析格式名
func ParseFormat(s string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("logger: unknown format %q", s)
	}
}

func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ResetConfig 重置配置缓存（仅用于测试）
func ResetConfig() {
	configOnce = sync.Once{}
	configCache = nil
}
