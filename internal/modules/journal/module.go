package journal

import (
	"context"
	"fmt"

	"signal_agent/internal/modules/config"
	"signal_agent/internal/modules/journal/service"
	"signal_agent/internal/runner"
	"signal_agent/pkg/db"
	"signal_agent/pkg/logger"

	"go.uber.org/fx"
)

// Module — дневник исполнения в Postgres. journal.dsn пустой — работаем
// без базы, с no-op реализацией.
func Module() fx.Option {
	return fx.Module("journal",
		fx.Provide(
			func(lc fx.Lifecycle, ctx context.Context, cfg *config.Config) (runner.Journal, error) {
				if cfg.Journal.DSN == "" {
					logger.Info("[JOURNAL] dsn не задан, дневник выключен")
					return service.NewNoop(), nil
				}

				pool, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.Journal.DSN,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create pool: %w", err)
				}
				if err := pool.Ping(ctx); err != nil {
					return nil, err
				}

				tm := db.NewTxManager(pool)
				lc.Append(fx.Hook{
					OnStop: func(_ context.Context) error {
						tm.Close()
						return nil
					},
				})

				j := service.New(tm)
				if err := j.Migrate(ctx); err != nil {
					return nil, err
				}
				return j, nil
			},
		),
	)
}
