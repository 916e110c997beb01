package predictor

import (
	"go.uber.org/fx"

	broker "fx_bot/internal/modules/broker/service"
	"fx_bot/internal/modules/config"
	journal "fx_bot/internal/modules/journal/service"
	"fx_bot/internal/modules/predictor/service"
	"fx_bot/pkg/logger"
)

func newModel(cfg *config.Config) service.Model {
	if cfg.Predictor.URL == "" {
		logger.Warn("[PREDICT] predictor.url не задан: входов не будет, свечи копятся в журнале")
		return service.Disabled{}
	}
	return service.NewRemote(service.RemoteConfig{
		URL:             cfg.Predictor.URL,
		Timeout:         cfg.Scheduler.CallTimeout,
		SignalThreshold: cfg.Predictor.SignalThreshold,
		MinTrailingPips: cfg.Predictor.MinTrailingPips,
		MaxTrailingPips: cfg.Predictor.MaxTrailingPips,
	})
}

func newRecorder(cfg *config.Config, client *broker.Client, store journal.Store) *service.Recorder {
	return service.NewRecorder(client, store, cfg.Predictor.CandleCount)
}

func Module() fx.Option {
	return fx.Module("predictor",
		fx.Provide(
			newModel,
			newRecorder,
			service.New,
		),
	)
}
