package host

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-circuit/config"
	"github.com/dep2p/go-circuit/internal/core/identity"
	"github.com/dep2p/go-circuit/pkg/interfaces"
)

// ============================================================================
//                              Fx 模块定义
// ============================================================================

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Identity *identity.Identity
	Host     *Host
	HostIf   interfaces.Host
}

// ProvideHost 加载身份并创建主机
func ProvideHost(input ModuleInput) (ModuleOutput, error) {
	cfg := input.UnifiedCfg
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	id, err := identity.Load(cfg.Identity)
	if err != nil {
		return ModuleOutput{}, fmt.Errorf("加载身份失败: %w", err)
	}

	h, err := New(cfg.Host, id)
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{Identity: id, Host: h, HostIf: h}, nil
}

// Module 返回 Fx 模块
//
// 提供:
//   - *identity.Identity: 本地身份
//   - *Host / interfaces.Host: 网络主机
//
// 生命周期:
//   - OnStart: 监听配置地址并连接已知节点
//   - OnStop: 关闭监听和全部连接
func Module() fx.Option {
	return fx.Module("host",
		fx.Provide(ProvideHost),
		fx.Invoke(registerLifecycle),
	)
}

// lifecycleInput Lifecycle 注册输入
type lifecycleInput struct {
	fx.In

	LC         fx.Lifecycle
	Host       *Host
	UnifiedCfg *config.Config `optional:"true"`
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(input lifecycleInput) {
	cfg := input.UnifiedCfg
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	input.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			listen, err := cfg.ListenMultiaddrs()
			if err != nil {
				return err
			}
			known, err := cfg.KnownPeerMultiaddrs()
			if err != nil {
				return err
			}
			if err := input.Host.Listen(listen...); err != nil {
				return err
			}

			log.Info("主机已启动", "id", input.Host.ID().String(), "addrs", len(input.Host.Addrs()))
			input.Host.ConnectKnownPeers(ctx, known)
			return nil
		},
		OnStop: func(_ context.Context) error {
			return input.Host.Close()
		},
	})
}
