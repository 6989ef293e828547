package credstore

import "go.uber.org/fx"

func Module() fx.Option {
	return fx.Module("credstore",
		fx.Provide(
			NewStore,
		),
	)
}
