package bootstrap

import (
	"context"
	bootstrap "signal_agent/internal/modules/bootstrap/service"
	"signal_agent/internal/modules/config"
	"signal_agent/pkg/logger"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			bootstrap.NewProbe, // -> bootstrap.Probe
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, p *bootstrap.Probe) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if cfg.Broker.Simulated {
						logger.Info("[BOOT] симулятор, проверку ключей пропускаем")
						return nil
					}
					return p.Run(ctx)
				},
			})
		}),
	)
}
