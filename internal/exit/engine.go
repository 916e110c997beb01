package exit

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"fx_bot/internal/metrics"
	"fx_bot/internal/models"
	"fx_bot/internal/state"
	"fx_bot/pkg/logger"
)

// ErrBusy: предыдущий цикл ещё идёт, новый не запускаем.
var ErrBusy = errors.New("exit cycle already running")

type Broker interface {
	OpenPositions(ctx context.Context) ([]models.OpenPosition, error)
	MidPrice(ctx context.Context, inst models.Instrument) (float64, error)
	CloseTrade(ctx context.Context, tradeID string) error
}

type Notifier interface {
	SendF(ctx context.Context, format string, args ...any) error
}

type Config struct {
	Rules          state.Rules
	Cooldown       time.Duration // cooldown_multiplier * poll_interval
	ProfitCacheTTL time.Duration
	CallTimeout    time.Duration
}

// Engine: оценка выхода по каждой открытой сделке: тейк-профит, затем трейлинг.
type Engine struct {
	cfg      Config
	store    *state.Store
	broker   Broker
	notifier Notifier
	now      func() time.Time

	running sync.Mutex
}

func New(cfg Config, store *state.Store, broker Broker, notifier Notifier, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Second
	}
	return &Engine{
		cfg:      cfg,
		store:    store,
		broker:   broker,
		notifier: notifier,
		now:      now,
	}
}

type Closed struct {
	TradeID    string
	Instrument models.Instrument
	Reason     models.CloseReason
	ProfitPips float64
	PeakPips   float64
}

// Result: что произошло за цикл; нужен логам и тестам.
type Result struct {
	Evaluated int
	Closed    []Closed
	Skipped   []string // trade_id без цены
	Failed    []string // trade_id, закрытие которых не удалось
}

// RunCycle проходит по позициям брокера один раз.
// Начатый цикл не прерывается отменой ctx: каждый вызов брокера получает свой таймаут.
func (e *Engine) RunCycle(ctx context.Context) (Result, error) {
	if !e.running.TryLock() {
		return Result{}, ErrBusy
	}
	defer e.running.Unlock()

	base := context.WithoutCancel(ctx)

	positions, err := e.openPositions(base)
	if err != nil {
		metrics.RecordFeedError("positions")
		return Result{}, errors.Wrap(err, "exit: fetch open positions")
	}

	var res Result
	for _, p := range positions {
		now := e.now()
		profit, err := e.profit(base, p, now)
		if err != nil {
			metrics.RecordFeedError("price")
			logger.Warn("[EXIT] %s %s: нет цены, пропускаем: %v", p.Instrument, p.TradeID, err)
			res.Skipped = append(res.Skipped, p.TradeID)
			continue
		}
		res.Evaluated++

		dec := e.store.Evaluate(p.TradeID, p.Instrument, profit, e.cfg.Rules)
		if dec.Activated {
			logger.Info("[TRAIL] %s %s трейлинг взведён: peak=%.1f pips", p.Instrument, p.TradeID, dec.PeakPips)
		}
		if dec.Reason != models.CloseTakeProfit {
			metrics.SetPeak(p.TradeID, dec.PeakPips)
		}
		logger.Debug("[EXIT] %s %s profit=%.1f peak=%.1f", p.Instrument, p.TradeID, dec.ProfitPips, dec.PeakPips)

		if !dec.ShouldClose() {
			continue
		}
		if err := e.close(base, p, dec); err != nil {
			logger.Error("[EXIT] %s %s: закрыть не удалось (%s): %v", p.Instrument, p.TradeID, dec.Reason, err)
			res.Failed = append(res.Failed, p.TradeID)
			continue
		}
		res.Closed = append(res.Closed, Closed{
			TradeID:    p.TradeID,
			Instrument: p.Instrument,
			Reason:     dec.Reason,
			ProfitPips: dec.ProfitPips,
			PeakPips:   dec.PeakPips,
		})
	}
	return res, nil
}

func (e *Engine) openPositions(ctx context.Context) ([]models.OpenPosition, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	return e.broker.OpenPositions(callCtx)
}

// profit: свежая запись из общего кеша, иначе считаем по mid-цене.
func (e *Engine) profit(ctx context.Context, p models.OpenPosition, now time.Time) (float64, error) {
	if pips, ok := e.store.Profit(p.Instrument, now, e.cfg.ProfitCacheTTL); ok {
		return pips, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	mid, err := e.broker.MidPrice(callCtx, p.Instrument)
	if err != nil {
		return 0, err
	}
	return models.ProfitPips(p.Instrument, p.Side, p.EntryPrice, mid), nil
}

func (e *Engine) close(ctx context.Context, p models.OpenPosition, dec models.ExitDecision) error {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	if err := e.broker.CloseTrade(callCtx, p.TradeID); err != nil {
		metrics.RecordClose(p.Instrument.String(), string(dec.Reason), false)
		return err
	}
	metrics.RecordClose(p.Instrument.String(), string(dec.Reason), true)

	until := e.now().Add(e.cfg.Cooldown)
	e.store.MarkClosed(p.TradeID, p.Instrument, until)
	metrics.DeletePeak(p.TradeID)

	logger.Info("[EXIT] %s %s закрыта: %s profit=%.1f peak=%.1f, кулдаун до %s",
		p.Instrument, p.TradeID, dec.Reason, dec.ProfitPips, dec.PeakPips, until.Format(time.RFC3339))

	icon := "🎯"
	if dec.Reason == models.CloseTrailingStop {
		icon = "🛡"
	}
	e.notify(ctx, "%s [%s] закрыта %s (%s) | profit=%.1f pips peak=%.1f pips",
		icon, p.Instrument, p.TradeID, dec.Reason, dec.ProfitPips, dec.PeakPips)
	return nil
}

// notify ограничен тем же таймаутом, что и вызовы брокера: цикл держит running.
func (e *Engine) notify(ctx context.Context, format string, args ...any) {
	if e.notifier == nil {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	if err := e.notifier.SendF(callCtx, format, args...); err != nil {
		logger.Warn("[EXIT] notify: %v", err)
	}
}
