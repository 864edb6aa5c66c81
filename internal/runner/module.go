package runner

import (
	"context"
	"time"

	"signal_agent/internal/ledger"
	"signal_agent/internal/models"
	feedsvc "signal_agent/internal/modules/feed/service"
	"signal_agent/internal/risk"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			risk.NewGate, // параметры даёт модуль config
			func() *ledger.Ledger {
				return ledger.New(time.Now())
			},
			New, // *Runner
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			r *Runner,
			ctx context.Context,
			frames chan feedsvc.RawFrame,
			states chan models.ConnState,
		) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					r.Start(ctx, frames, states)
					return nil
				},
				OnStop: func(_ context.Context) error {
					r.Stop()
					return nil
				},
			})
		}),
	)
}
