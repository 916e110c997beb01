package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"fx_bot/internal/metrics"
	"fx_bot/internal/models"
	"fx_bot/internal/state"
	"fx_bot/pkg/logger"
)

type Broker interface {
	OpenPositions(ctx context.Context) ([]models.OpenPosition, error)
	MidPrice(ctx context.Context, inst models.Instrument) (float64, error)
}

type Journal interface {
	SaveSnapshots(ctx context.Context, snaps []models.ProfitSnapshot) error
	LastSnapshot(ctx context.Context, tradeID string) (models.ProfitSnapshot, bool, error)
	RecordOutcome(ctx context.Context, o models.TradeOutcome) error
}

// Monitor пишет прибыль открытых сделок в общий кеш и журнал,
// а исчезнувшие у брокера сделки записывает как закрытые.
type Monitor struct {
	store       *state.Store
	broker      Broker
	journal     Journal
	now         func() time.Time
	callTimeout time.Duration

	mu   sync.Mutex
	seen map[string]seenTrade // trade_id -> последний срез
}

type seenTrade struct {
	instrument models.Instrument
	snap       models.ProfitSnapshot
	hasSnap    bool
}

func New(store *state.Store, broker Broker, journal Journal, callTimeout time.Duration, now func() time.Time) *Monitor {
	if now == nil {
		now = time.Now
	}
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	return &Monitor{
		store:       store,
		broker:      broker,
		journal:     journal,
		now:         now,
		callTimeout: callTimeout,
		seen:        make(map[string]seenTrade),
	}
}

func (m *Monitor) RunCycle(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	positions, err := m.openPositions(ctx)
	if err != nil {
		metrics.RecordFeedError("positions")
		return errors.Wrap(err, "monitor: fetch open positions")
	}

	now := m.now()
	next := make(map[string]seenTrade, len(positions))
	snaps := make([]models.ProfitSnapshot, 0, len(positions))

	for _, p := range positions {
		prev := m.seen[p.TradeID]
		mid, err := m.midPrice(ctx, p.Instrument)
		if err != nil {
			metrics.RecordFeedError("price")
			logger.Warn("[MONITOR] %s %s: нет цены: %v", p.Instrument, p.TradeID, err)
			prev.instrument = p.Instrument
			next[p.TradeID] = prev
			continue
		}

		pips := models.ProfitPips(p.Instrument, p.Side, p.EntryPrice, mid)
		m.store.SetProfit(p.Instrument, pips, now)

		snap := models.ProfitSnapshot{
			TradeID:    p.TradeID,
			Instrument: p.Instrument,
			ProfitPips: pips,
			ProfitUSD:  p.UnrealizedPL,
			Time:       now,
		}
		snaps = append(snaps, snap)
		next[p.TradeID] = seenTrade{instrument: p.Instrument, snap: snap, hasSnap: true}
		logger.Debug("[MONITOR] %s %s profit=%.1f pips (%.2f USD)", p.Instrument, p.TradeID, pips, p.UnrealizedPL)
	}

	if len(snaps) > 0 {
		if err := m.journal.SaveSnapshots(ctx, snaps); err != nil {
			logger.Error("[MONITOR] сохранить срезы не удалось: %v", err)
		}
	}

	m.recordClosed(ctx, next, now)

	for _, id := range m.store.Prune(positions) {
		metrics.DeletePeak(id)
	}
	m.seen = next
	return nil
}

// recordClosed: сделки из прошлого цикла, которых нет в текущем, считаем закрытыми.
func (m *Monitor) recordClosed(ctx context.Context, open map[string]seenTrade, now time.Time) {
	openInst := make(map[models.Instrument]struct{}, len(open))
	for _, t := range open {
		openInst[t.instrument] = struct{}{}
	}

	closed := make([]string, 0)
	for id := range m.seen {
		if _, ok := open[id]; !ok {
			closed = append(closed, id)
		}
	}
	sort.Strings(closed)

	for _, id := range closed {
		t := m.seen[id]
		snap, ok := t.snap, t.hasSnap
		if !ok {
			var err error
			snap, ok, err = m.journal.LastSnapshot(ctx, id)
			if err != nil {
				logger.Error("[MONITOR] %s: последний срез не прочитан: %v", id, err)
			}
		}

		m.store.Clear(id)
		if _, stillOpen := openInst[t.instrument]; !stillOpen {
			m.store.ClearProfit(t.instrument)
		}
		metrics.DeletePeak(id)

		if !ok {
			logger.Warn("[MONITOR] %s %s закрыта, но срезов нет: итог не записан", t.instrument, id)
			continue
		}
		outcome := models.TradeOutcome{
			TradeID:         id,
			Instrument:      snap.Instrument,
			FinalProfitPips: snap.ProfitPips,
			FinalProfitUSD:  snap.ProfitUSD,
			CloseTime:       now,
		}
		if err := m.journal.RecordOutcome(ctx, outcome); err != nil {
			logger.Error("[MONITOR] %s: итог не записан: %v", id, err)
			continue
		}
		metrics.RecordOutcome(outcome.Instrument.String(), outcome.FinalProfitPips)
		logger.Info("[MONITOR] %s %s закрыта: %.1f pips (%.2f USD)",
			outcome.Instrument, id, outcome.FinalProfitPips, outcome.FinalProfitUSD)
	}
}

func (m *Monitor) openPositions(ctx context.Context) ([]models.OpenPosition, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()
	return m.broker.OpenPositions(callCtx)
}

func (m *Monitor) midPrice(ctx context.Context, inst models.Instrument) (float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()
	return m.broker.MidPrice(callCtx, inst)
}
