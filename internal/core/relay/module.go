package relay

import (
	"context"

	prom "github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-circuit/config"
	"github.com/dep2p/go-circuit/pkg/interfaces"
)

// ============================================================================
//                              Fx 模块定义
// ============================================================================

// Params 模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Host       interfaces.Host
	Registerer prom.Registerer `optional:"true"`
}

// Result 模块提供的结果
type Result struct {
	fx.Out

	Service *Service
}

// Module 返回 Fx 模块配置
//
// 提供:
//   - *Service: 中继协议服务
//
// 生命周期:
//   - OnStart: 注册 /libp2p/circuit/relay/0.1.0 处理器
//   - OnStop: 注销处理器并关闭所有电路
func Module() fx.Option {
	return fx.Module("relay",
		fx.Provide(ProvideService),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideService 提供中继服务
func ProvideService(p Params) (Result, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)

	var opts []Option
	if p.UnifiedCfg != nil && p.UnifiedCfg.Metrics.Enabled {
		opts = append(opts, WithMetricsTracer(NewMetricsTracer(p.Registerer)))
	}

	svc, err := NewService(cfg, p.Host, opts...)
	if err != nil {
		return Result{}, err
	}
	return Result{Service: svc}, nil
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC      fx.Lifecycle
	Service *Service
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return input.Service.Start()
		},
		OnStop: func(_ context.Context) error {
			return input.Service.Close()
		},
	})
}
