package bootstrap

import (
	"context"

	"go.uber.org/fx"

	"fx_bot/internal/modules/config"
	"fx_bot/pkg/logger"
	"fx_bot/pkg/tracing"
)

// setup: логгер и трейсер поднимаются до остальных модулей.
func setup(lc fx.Lifecycle, cfg *config.Config) error {
	logger.SetServiceName(cfg.Service.Name)
	tracing.SetServiceName(cfg.Service.Name)
	if _, err := logger.Init(cfg.Logger); err != nil {
		return err
	}

	logger.Info("[CONFIG] effective config:\n%s", cfg.Dump())

	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		Enabled: cfg.Tracing.Enabled,
		Host:    cfg.Tracing.Host,
		Port:    cfg.Tracing.Port,
	})
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closeTracer()
			logger.Sync()
			return nil
		},
	})
	return nil
}

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Invoke(setup),
	)
}
