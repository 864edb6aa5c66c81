package feed

import (
	"context"
	"errors"

	"signal_agent/internal/models"
	"signal_agent/internal/modules/feed/service"
	"signal_agent/pkg/logger"

	"go.uber.org/fx"
)

// Module поднимает подписку на сигнальный фид.
func Module() fx.Option {
	return fx.Module("feed",
		fx.Provide(
			service.NewClient, // *service.Client
			func() chan service.RawFrame {
				// буфер на случай, если раннер занят ордером
				return make(chan service.RawFrame, 256)
			},
			func() chan models.ConnState {
				return make(chan models.ConnState, 16)
			},
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			sh fx.Shutdowner,
			c *service.Client,
			ctx context.Context,
			out chan service.RawFrame,
			states chan models.ConnState,
		) {
			runCtx, cancel := context.WithCancel(ctx)
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go func() {
						err := c.Run(runCtx, out, states)
						if err != nil && errors.Is(err, service.ErrAuth) {
							// реконнект не поможет, нужен новый FEED_TOKEN
							logger.Error("[FEED] %v", err)
							_ = sh.Shutdown(fx.ExitCode(1))
						}
					}()
					return nil
				},
				OnStop: func(_ context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
