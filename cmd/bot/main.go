package main

import (
	"context"

	"go.uber.org/fx"

	"fx_bot/internal/modules/bootstrap"
	"fx_bot/internal/modules/broker"
	"fx_bot/internal/modules/config"
	"fx_bot/internal/modules/health"
	"fx_bot/internal/modules/journal"
	"fx_bot/internal/modules/predictor"
	"fx_bot/internal/modules/telegram"
	"fx_bot/internal/runner"
)

func main() {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		bootstrap.Module(),
		journal.Module(),
		broker.Module(),
		predictor.Module(),
		health.Module(),
		telegram.Module(),
		runner.Module(),
	)
	app.Run()
}
