package config

import (
	"signal_agent/internal/models"

	"go.uber.org/fx"
)

// Module отдаёт конфиг и снятый с него снимок торговых параметров.
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
			func(cfg *Config) models.TradingParameters {
				return cfg.TradingParameters()
			},
		),
	)
}
