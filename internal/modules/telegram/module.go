package telegram

import (
	"context"

	"go.uber.org/fx"

	broker "fx_bot/internal/modules/broker/service"
	"fx_bot/internal/modules/config"
	health "fx_bot/internal/modules/health/service"
	journal "fx_bot/internal/modules/journal/service"
	"fx_bot/internal/modules/telegram/service"
	"fx_bot/internal/state"
	"fx_bot/pkg/logger"
)

type params struct {
	fx.In

	Lc      fx.Lifecycle
	Cfg     *config.Config
	Broker  *broker.Client
	Journal journal.Store
	Health  *health.State
	Store   *state.Store
}

// newNotifier: без токена уведомления уходят в лог, команды не принимаются.
func newNotifier(p params) (service.Notifier, error) {
	if p.Cfg.Telegram.Token == "" {
		logger.Warn("[TELEGRAM] токен не задан, уведомления пишутся в лог")
		return service.NewLog(), nil
	}

	t, err := service.NewTelegram(service.Config{
		Token:       p.Cfg.Telegram.Token,
		ChatID:      p.Cfg.Telegram.ChatID,
		CallTimeout: p.Cfg.Scheduler.CallTimeout,
	}, service.Deps{
		Positions: p.Broker,
		Outcomes:  p.Journal,
		Status:    p.Health,
		State:     p.Store,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.Lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			t.Start(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			t.Stop()
			return nil
		},
	})
	return t, nil
}

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(newNotifier),
	)
}
