package runner

import (
	"context"

	"go.uber.org/fx"

	"fx_bot/internal/entry"
	"fx_bot/internal/exit"
	broker "fx_bot/internal/modules/broker/service"
	"fx_bot/internal/modules/config"
	health "fx_bot/internal/modules/health/service"
	journal "fx_bot/internal/modules/journal/service"
	predictor "fx_bot/internal/modules/predictor/service"
	telegram "fx_bot/internal/modules/telegram/service"
	"fx_bot/internal/monitor"
	"fx_bot/internal/state"
)

func newExitEngine(cfg *config.Config, store *state.Store, client *broker.Client, n telegram.Notifier) *exit.Engine {
	t := cfg.Trading
	return exit.New(exit.Config{
		Rules: state.Rules{
			TakeProfitPips:      t.TakeProfitPips,
			ActivationThreshold: t.ActivationThreshold,
			TrailingGap:         t.TrailingGap,
		},
		Cooldown:       t.Cooldown(),
		ProfitCacheTTL: t.ProfitCacheTTL,
		CallTimeout:    cfg.Scheduler.CallTimeout,
	}, store, client, n, nil)
}

func newAggregator(
	cfg *config.Config,
	store *state.Store,
	client *broker.Client,
	p *predictor.Service,
	n telegram.Notifier,
) *entry.Aggregator {
	t := cfg.Trading
	return entry.New(entry.Config{
		Instruments:         t.InstrumentList(),
		Timeframes:          t.Timeframes,
		OrderUnits:          t.OrderUnits,
		EntryThresholdPips:  t.EntryThresholdPips,
		StopLossPips:        t.StopLossPips,
		TakeProfitPips:      t.TakeProfitPips,
		ConditionalInterval: t.ConditionalInterval,
		CallTimeout:         cfg.Scheduler.CallTimeout,
	}, store, client, p, n, nil)
}

func newMonitor(cfg *config.Config, store *state.Store, client *broker.Client, j journal.Store) *monitor.Monitor {
	return monitor.New(store, client, j, cfg.Scheduler.CallTimeout, nil)
}

type supervisorParams struct {
	fx.In

	Cfg      *config.Config
	Client   *broker.Client
	Exit     *exit.Engine
	Entry    *entry.Aggregator
	Monitor  *monitor.Monitor
	Notifier telegram.Notifier
	Health   *health.State
}

func newSupervisor(p supervisorParams) *Supervisor {
	s := p.Cfg.Scheduler
	return NewSupervisor(Config{
		EntryInterval:     s.EntryInterval,
		RiskInterval:      s.RiskInterval,
		MonitorInterval:   s.MonitorInterval,
		HeartbeatInterval: s.HeartbeatInterval,
		ReconnectDelay:    s.ReconnectDelay,
		CallTimeout:       s.CallTimeout,
	}, RealClock(), p.Client, p.Exit, p.Entry, p.Monitor, p.Notifier, p.Health)
}

// run: супервизор живёт между OnStart и OnStop; OnStop ждёт завершения текущих циклов.
func run(lc fx.Lifecycle, s *Supervisor) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				s.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			state.New,
			newExitEngine,
			newAggregator,
			newMonitor,
			newSupervisor,
		),
		fx.Invoke(run),
	)
}
