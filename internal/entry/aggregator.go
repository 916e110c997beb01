package entry

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"fx_bot/internal/metrics"
	"fx_bot/internal/models"
	"fx_bot/internal/state"
	"fx_bot/pkg/logger"
)

type Trigger string

const (
	TriggerScheduled   Trigger = "scheduled"
	TriggerConditional Trigger = "conditional"
)

// SkipReason: почему оценка закончилась без ордера.
type SkipReason string

const (
	SkipNone         SkipReason = ""
	SkipBusy         SkipReason = "busy"
	SkipNotDue       SkipReason = "not_due"
	SkipPositionOpen SkipReason = "position_open"
	SkipNoCandidate  SkipReason = "no_candidate"
)

type Broker interface {
	OpenPositions(ctx context.Context) ([]models.OpenPosition, error)
	MidPrice(ctx context.Context, inst models.Instrument) (float64, error)
	PlaceMarketOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error)
}

type Predictor interface {
	Predict(ctx context.Context, inst models.Instrument, timeframe string) (models.Prediction, error)
}

type Notifier interface {
	SendF(ctx context.Context, format string, args ...any) error
}

type Config struct {
	Instruments         []models.Instrument
	Timeframes          []string
	OrderUnits          float64
	EntryThresholdPips  float64
	StopLossPips        float64
	TakeProfitPips      float64
	ConditionalInterval time.Duration
	CallTimeout         time.Duration
}

type Result struct {
	Trigger   Trigger
	Skipped   SkipReason
	Candidate *models.SignalCandidate
	Request   *models.OrderRequest
	Order     *models.OrderResult
}

// Aggregator выбирает один лучший сигнал по всей вселенной и открывает по нему сделку.
// Одновременно идёт не больше одной оценки: кто первым взял замок, тот и работает.
type Aggregator struct {
	cfg       Config
	store     *state.Store
	broker    Broker
	predictor Predictor
	notifier  Notifier
	now       func() time.Time
	newID     func() string

	running sync.Mutex

	lastMu      sync.Mutex
	lastAttempt time.Time
}

func New(cfg Config, store *state.Store, broker Broker, predictor Predictor, notifier Notifier, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Second
	}
	return &Aggregator{
		cfg:       cfg,
		store:     store,
		broker:    broker,
		predictor: predictor,
		notifier:  notifier,
		now:       now,
		newID:     uuid.NewString,
	}
}

// Evaluate: плановая оценка входа.
func (a *Aggregator) Evaluate(ctx context.Context, trigger Trigger) (Result, error) {
	if !a.running.TryLock() {
		return Result{Trigger: trigger, Skipped: SkipBusy}, nil
	}
	defer a.running.Unlock()

	a.markAttempt(a.now())
	return a.evaluate(ctx, trigger)
}

// TryConditional запускает оценку из задачи риска: только без открытых позиций
// и не раньше чем через ConditionalInterval после прошлой попытки.
func (a *Aggregator) TryConditional(ctx context.Context) (Result, error) {
	res := Result{Trigger: TriggerConditional}
	if !a.running.TryLock() {
		res.Skipped = SkipBusy
		return res, nil
	}
	defer a.running.Unlock()

	now := a.now()
	if last := a.LastAttempt(); !last.IsZero() && now.Sub(last) < a.cfg.ConditionalInterval {
		res.Skipped = SkipNotDue
		return res, nil
	}

	open, err := a.openPositions(ctx)
	if err != nil {
		return res, err
	}
	if len(open) > 0 {
		res.Skipped = SkipPositionOpen
		return res, nil
	}

	logger.Info("[ENTRY] conditional: позиций нет, запускаем оценку")
	a.markAttempt(now)
	return a.evaluate(ctx, TriggerConditional)
}

func (a *Aggregator) LastAttempt() time.Time {
	a.lastMu.Lock()
	defer a.lastMu.Unlock()
	return a.lastAttempt
}

func (a *Aggregator) markAttempt(t time.Time) {
	a.lastMu.Lock()
	a.lastAttempt = t
	a.lastMu.Unlock()
}

func (a *Aggregator) evaluate(ctx context.Context, trigger Trigger) (Result, error) {
	res := Result{Trigger: trigger}

	open, err := a.openPositions(ctx)
	if err != nil {
		return res, err
	}
	if len(open) > 0 {
		logger.Info("[ENTRY] %s: открыта позиция %s %s, вход не ищем", trigger, open[0].Instrument, open[0].TradeID)
		res.Skipped = SkipPositionOpen
		return res, nil
	}

	best, ok := selectBest(a.collect(ctx), a.cfg.EntryThresholdPips)
	if !ok {
		logger.Info("[ENTRY] %s: нет сигналов >= %.0f pips", trigger, a.cfg.EntryThresholdPips)
		res.Skipped = SkipNoCandidate
		return res, nil
	}
	res.Candidate = &best
	logger.Info("[ENTRY] %s: лучший сигнал %s %s %s %.1f pips",
		trigger, best.Instrument, best.Timeframe, best.Signal, best.PredictedPips)

	// пока опрашивали модель, позиция могла открыться
	open, err = a.openPositions(ctx)
	if err != nil {
		return res, err
	}
	if len(open) > 0 {
		logger.Warn("[ENTRY] %s: позиция %s появилась до размещения, отменяем", trigger, open[0].TradeID)
		res.Skipped = SkipPositionOpen
		return res, nil
	}

	req, err := a.buildOrder(ctx, best)
	if err != nil {
		return res, err
	}
	res.Request = &req

	side, _ := best.Signal.Side()
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()
	order, err := a.broker.PlaceMarketOrder(callCtx, req)
	if err != nil {
		metrics.RecordOrder(best.Instrument.String(), string(side), false)
		a.notify(ctx, "⚠️ [%s] ордер %s не размещён: %v", best.Instrument, side, err)
		return res, errors.Wrapf(err, "entry: place order %s", best.Instrument)
	}
	metrics.RecordOrder(best.Instrument.String(), string(side), true)
	res.Order = &order

	logger.Info("[ENTRY] %s OPEN %s units=%.0f @ %.5f SL=%.5f TP=%.5f trade=%s client=%s",
		best.Instrument, side, req.Units, order.Price, req.StopLoss, req.TakeProfit, order.TradeID, req.ClientID)
	a.notify(ctx, "✅ [%s] OPEN %s @ %.5f | SL=%.5f TP=%.5f | %s %.1f pips (%s)",
		best.Instrument, side, order.Price, req.StopLoss, req.TakeProfit, best.Timeframe, best.PredictedPips, trigger)
	return res, nil
}

// collect опрашивает модель по инструментам и таймфреймам в порядке конфига.
func (a *Aggregator) collect(ctx context.Context) []models.SignalCandidate {
	now := a.now()
	var out []models.SignalCandidate
	for _, inst := range a.cfg.Instruments {
		if a.store.InCooldown(inst, now) {
			logger.Debug("[ENTRY] %s в кулдауне, пропускаем", inst)
			continue
		}
		for _, tf := range a.cfg.Timeframes {
			callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
			p, err := a.predictor.Predict(callCtx, inst, tf)
			cancel()
			if err != nil {
				if errors.Is(err, models.ErrModelUnavailable) {
					logger.Debug("[ENTRY] %s %s: модели нет", inst, tf)
				} else {
					metrics.RecordFeedError("prediction")
					logger.Warn("[ENTRY] %s %s: предсказание не получено: %v", inst, tf, err)
				}
				continue
			}
			out = append(out, models.SignalCandidate{
				Instrument:    inst,
				Timeframe:     tf,
				Signal:        p.Signal,
				PredictedPips: p.PredictedPips,
				TrailingPips:  p.TrailingPips,
			})
		}
	}
	return out
}

// selectBest: без HOLD и без слабых сигналов; максимум |pips|, при равенстве: первый встреченный.
func selectBest(cands []models.SignalCandidate, threshold float64) (models.SignalCandidate, bool) {
	var (
		best  models.SignalCandidate
		found bool
	)
	for _, c := range cands {
		if _, ok := c.Signal.Side(); !ok {
			continue
		}
		mag := math.Abs(c.PredictedPips)
		if mag < threshold {
			continue
		}
		if !found || mag > math.Abs(best.PredictedPips) {
			best, found = c, true
		}
	}
	return best, found
}

func (a *Aggregator) buildOrder(ctx context.Context, c models.SignalCandidate) (models.OrderRequest, error) {
	side, _ := c.Signal.Side()

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()
	mid, err := a.broker.MidPrice(callCtx, c.Instrument)
	if err != nil {
		metrics.RecordFeedError("price")
		return models.OrderRequest{}, errors.Wrapf(err, "entry: mid price %s", c.Instrument)
	}

	prec := c.Instrument.PricePrecision()
	return models.OrderRequest{
		Instrument: c.Instrument,
		Units:      side.Sign() * a.cfg.OrderUnits,
		StopLoss:   roundPrice(models.PriceAtPips(c.Instrument, side, mid, -a.cfg.StopLossPips), prec),
		TakeProfit: roundPrice(models.PriceAtPips(c.Instrument, side, mid, a.cfg.TakeProfitPips), prec),
		ClientID:   a.newID(),
	}, nil
}

func roundPrice(px float64, prec int32) float64 {
	return decimal.NewFromFloat(px).Round(prec).InexactFloat64()
}

func (a *Aggregator) openPositions(ctx context.Context) ([]models.OpenPosition, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()
	open, err := a.broker.OpenPositions(callCtx)
	if err != nil {
		metrics.RecordFeedError("positions")
		return nil, errors.Wrap(err, "entry: fetch open positions")
	}
	return open, nil
}

func (a *Aggregator) notify(ctx context.Context, format string, args ...any) {
	if a.notifier == nil {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()
	if err := a.notifier.SendF(callCtx, format, args...); err != nil {
		logger.Warn("[ENTRY] notify: %v", err)
	}
}
