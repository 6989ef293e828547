package panels

import (
	"context"

	"option_terminal/internal/modules/config"
	gws "option_terminal/internal/modules/gateway/service"
	journal "option_terminal/internal/modules/journal/service"
	"option_terminal/internal/modules/panels/service"
	"option_terminal/internal/notify"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("panels",
		fx.Provide(
			func(cfg *config.Config, client *gws.Client, j *journal.Journal, n notify.Notifier) *service.Manager {
				return service.NewManager(cfg, client, j, n)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, m *service.Manager) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					m.Start()
					return nil
				},
			})
		}),
	)
}
