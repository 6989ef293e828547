package gateway

import (
	"context"

	"option_terminal/internal/modules/credstore"
	"option_terminal/internal/modules/gateway/service"
	"option_terminal/pkg/logger"

	"go.uber.org/fx"
)

// Module provides the trade-execution client and connects it on startup
// with whatever credential the store holds. A failed connect is reported,
// not fatal: the terminal stays up disconnected and the UI owns the retry.
func Module() fx.Option {
	return fx.Module("gateway",
		fx.Provide(
			service.NewClient,
		),
		fx.Invoke(func(lc fx.Lifecycle, c *service.Client, store *credstore.Store) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					token, err := store.Load()
					if err != nil {
						logger.Error("gateway: credential load: %v", err)
					}
					go func() {
						if err := c.Connect(context.Background(), token); err != nil {
							logger.Error("gateway: connect: %v", err)
						}
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					c.Disconnect()
					return nil
				},
			})
		}),
	)
}
