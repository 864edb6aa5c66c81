package main

import (
	"context"

	"signal_agent/internal/modules/bootstrap"
	"signal_agent/internal/modules/broker"
	"signal_agent/internal/modules/config"
	"signal_agent/internal/modules/feed"
	"signal_agent/internal/modules/health"
	"signal_agent/internal/modules/journal"
	telegram "signal_agent/internal/modules/telegram_bot"
	"signal_agent/internal/runner"
	"signal_agent/pkg/logger"
	"signal_agent/pkg/tracing"

	"go.uber.org/fx"
)

const serviceName = "signal-agent"

func main() {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		fx.Invoke(initLogging),
		broker.Module(),
		journal.Module(),
		telegram.Module(),
		bootstrap.Module(),
		health.Module(),
		feed.Module(),
		runner.Module(),
	)
	app.Run()
}

// initLogging поднимает zap и (опционально) Jaeger раньше остальных модулей,
// чтобы их провайдеры уже могли логировать.
func initLogging(lc fx.Lifecycle, cfg *config.Config) error {
	logger.SetServiceName(serviceName)
	if err := logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		Console:    cfg.ConsoleLog(),
	}); err != nil {
		return err
	}

	if cfg.Tracing.Enabled {
		tracing.SetServiceName(serviceName)
		_, closeTracer, err := tracing.InitTracer(tracing.Config{
			Host: cfg.Tracing.Host,
			Port: cfg.Tracing.Port,
		})
		if err != nil {
			return err
		}
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				closeTracer()
				return nil
			},
		})
	}

	return nil
}
