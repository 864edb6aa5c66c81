package broker

import (
	"signal_agent/internal/modules/broker/service"
	"signal_agent/internal/modules/config"
	"signal_agent/internal/runner"
	"signal_agent/pkg/logger"

	"go.uber.org/fx"
)

// Module отдаёт раннеру клиента биржи. broker.simulated подменяет его
// заглушкой — удобно обкатывать фид без живых ключей.
func Module() fx.Option {
	return fx.Module("broker",
		fx.Provide(
			func(cfg *config.Config) runner.Broker {
				if cfg.Broker.Simulated {
					logger.Info("[BROKER] simulated mode, живых ордеров не будет")
					return service.NewSim()
				}
				return service.NewClient(cfg)
			},
		),
	)
}
