package broker

import (
	"go.uber.org/fx"

	"fx_bot/internal/modules/broker/service"
	"fx_bot/internal/modules/config"
	"fx_bot/pkg/logger"
)

func newClient(cfg *config.Config) *service.Client {
	if cfg.Broker.AccountID == "" || cfg.Broker.APIKey == "" {
		logger.Warn("[BROKER] учётные данные OANDA (%s) не заданы", cfg.Broker.Mode)
	}
	return service.NewClient(service.Config{
		Mode:      cfg.Broker.Mode,
		BaseURL:   cfg.Broker.BaseURL,
		AccountID: cfg.Broker.AccountID,
		APIKey:    cfg.Broker.APIKey,
		Timeout:   2 * cfg.Scheduler.CallTimeout,
	})
}

func Module() fx.Option {
	return fx.Module("broker",
		fx.Provide(
			newClient,
		),
	)
}
