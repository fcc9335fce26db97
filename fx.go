package circuit

import (
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-circuit/config"
	"github.com/dep2p/go-circuit/internal/core/host"
	"github.com/dep2p/go-circuit/internal/core/relay"
)

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：Host（含身份） → Relay
func buildFxApp(cfg *config.Config, reg prom.Registerer, node *Node) *fx.App {
	modules := []fx.Option{
		fx.Supply(cfg),
		host.Module(),
		relay.Module(),
		fx.Populate(&node.host, &node.relay),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	}

	if reg != nil {
		modules = append(modules, fx.Provide(func() prom.Registerer { return reg }))
	}

	return fx.New(modules...)
}

func validate(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
