package journal

import (
	"context"

	"option_terminal/internal/modules/config"
	"option_terminal/internal/modules/journal/service"
	"option_terminal/pkg/db"
	"option_terminal/pkg/logger"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("journal",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (*service.Journal, error) {
				if cfg.DB == "" {
					logger.Info("journal: no DSN configured, history disabled")
					return service.NewJournal(nil), nil
				}
				pool, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.DB})
				if err != nil {
					return nil, err
				}
				if err := pool.Ping(ctx); err != nil {
					return nil, err
				}
				return service.NewJournal(db.NewPgTxManager(pool)), nil
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, j *service.Journal) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					return j.EnsureSchema(ctx)
				},
			})
		}),
	)
}
