// Package logger 提供 go-circuit 的统一日志系统
//
// 基于标准库 log/slog，支持：
//   - 按子系统配置日志级别
//   - 环境变量配置（CIRCUIT_LOG_LEVEL, CIRCUIT_LOG_FORMAT）
//   - 运行时调整级别与格式（配置文件 log 段在启动时调用 Configure）
//
// 使用示例:
//
//	package relay
//
//	import "github.com/dep2p/go-circuit/internal/util/logger"
//
//	var log = logger.Logger("relay")
//
//	func foo() {
//	    log.Info("circuit opened", "src", src.ShortString(), "dst", dst.ShortString())
//	    log.Debug("stop rejected", "code", code)
//	}
//
// 环境变量配置:
//
//	# relay 模块 debug，其余 info
//	CIRCUIT_LOG_LEVEL=relay=debug,info
//
//	# JSON 输出
//	CIRCUIT_LOG_FORMAT=json
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	// loggers 缓存各子系统的 Logger
	loggers sync.Map // map[string]*slog.Logger

	// handlers 缓存各子系统的 Handler（用于动态调整级别）
	handlers sync.Map // map[string]*subsystemHandler
)

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用返回相同实例。级别取自 CIRCUIT_LOG_LEVEL，
// 之后可通过 SetLevel / Configure 调整。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	cfg := ConfigFromEnv()
	h := newHandler(subsystem, cfg.LevelForSubsystem(subsystem), cfg.AddSource)

	actual, loaded := loggers.LoadOrStore(subsystem, slog.New(h))
	if !loaded {
		handlers.Store(subsystem, h)
	}
	return actual.(*slog.Logger)
}

// SetLevel 动态设置子系统的日志级别
//
// 子系统尚未创建 Logger 时，级别记录下来并在创建时生效。
func SetLevel(subsystem string, level slog.Level) {
	ConfigFromEnv().setSubsystemLevel(subsystem, level)
	if h, ok := handlers.Load(subsystem); ok {
		h.(*subsystemHandler).level.Set(level)
	}
}

// SetGlobalLevel 设置默认级别并应用到所有未单独配置的子系统
func SetGlobalLevel(level slog.Level) {
	cfg := ConfigFromEnv()
	cfg.setDefaultLevel(level)
	handlers.Range(func(key, value any) bool {
		value.(*subsystemHandler).level.Set(cfg.LevelForSubsystem(key.(string)))
		return true
	})
}

// SetFormat 切换全部 Logger 的输出格式
func SetFormat(format LogFormat) {
	globalFormat.Store(int32(format))
}

// Configure 按配置串调整级别与格式
//
// levelSpec 语法与 CIRCUIT_LOG_LEVEL 相同；format 为 "text" 或 "json"，
// 空串表示保持不变。
func Configure(levelSpec, format string) error {
	if levelSpec != "" {
		def, subs, err := ParseLevelSpec(levelSpec)
		if err != nil {
			return err
		}
		if def != nil {
			SetGlobalLevel(*def)
		}
		for name, lvl := range subs {
			SetLevel(name, lvl)
		}
	}
	if format != "" {
		f, err := ParseFormat(format)
		if err != nil {
			return err
		}
		SetFormat(f)
	}
	return nil
}

// Discard 返回一个丢弃所有日志的 Logger
//
// 主要用于测试。
func Discard() *slog.Logger {
	return slog.New(DiscardHandler())
}

// With 创建带有预设属性的 Logger
func With(subsystem string, args ...any) *slog.Logger {
	return Logger(subsystem).With(args...)
}

// SetOutput 设置全局日志输出目标
//
// 已创建的 Logger 同样重定向到新的 writer。
func SetOutput(w io.Writer) {
	globalOutputMu.Lock()
	globalOutput = w
	globalOutputMu.Unlock()
}
