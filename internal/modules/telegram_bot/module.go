package telegram

import (
	"context"

	"signal_agent/internal/ledger"
	"signal_agent/internal/modules/config"
	"signal_agent/internal/notify"
	"signal_agent/pkg/logger"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("telegram",
		// Notifier: если TELEGRAM_* нет — используем stdout
		fx.Provide(
			func(cfg *config.Config, led *ledger.Ledger) notify.Notifier {
				if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
					tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, led)
					if err == nil {
						return tg
					}
					logger.Error("[TG] init failed: %v, уведомления уходят в stdout", err)
				}
				return notify.NewStdout()
			},
		),
		// long-polling команд живёт на контексте приложения, не на OnStart
		fx.Invoke(
			func(lc fx.Lifecycle, n notify.Notifier, ctx context.Context) {
				lc.Append(fx.Hook{
					OnStart: func(_ context.Context) error {
						if tg, ok := n.(*notify.Telegram); ok {
							return tg.Start(ctx)
						}
						return nil
					},
					OnStop: func(_ context.Context) error {
						if tg, ok := n.(*notify.Telegram); ok {
							tg.Stop()
						}
						return nil
					},
				})
			},
		),
	)
}
