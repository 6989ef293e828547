package main

import (
	"context"
	"log"

	"option_terminal/internal/modules/config"
	"option_terminal/internal/modules/credstore"
	"option_terminal/internal/modules/gateway"
	gws "option_terminal/internal/modules/gateway/service"
	"option_terminal/internal/modules/health"
	"option_terminal/internal/modules/journal"
	"option_terminal/internal/modules/panels"
	"option_terminal/internal/notify"
	"option_terminal/pkg/logger"
	"option_terminal/pkg/tracing"

	"go.uber.org/fx"
)

func main() {
	logger.Init()
	logger.SetServiceName("option-terminal")

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			notify.New,
			func(n notify.Notifier) gws.ServiceNotifier { return n },
		),
		config.Module(),
		credstore.Module(),
		gateway.Module(),
		journal.Module(),
		panels.Module(),
		health.Module(),
		fx.Invoke(initTracing),
	)
	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	<-app.Done()
	if err := app.Stop(context.Background()); err != nil {
		log.Fatal(err)
	}
}

func initTracing(lc fx.Lifecycle, cfg *config.Config) {
	if cfg.Jaeger.Host == "" {
		return
	}
	tracing.SetServiceName("option-terminal")
	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		Host: cfg.Jaeger.Host,
		Port: cfg.Jaeger.Port,
	})
	if err != nil {
		logger.Error("tracing init: %v", err)
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			closeTracer()
			return nil
		},
	})
}
