package service

import (
	"context"
	"sort"
	"sync"

	"fx_bot/internal/models"
)

type candleKey struct {
	instrument models.Instrument
	timeframe  string
	unix       int64
}

// Memory: журнал в памяти для тестов и dry-run.
type Memory struct {
	mu        sync.RWMutex
	snapshots map[string][]models.ProfitSnapshot
	outcomes  map[string]models.TradeOutcome
	candles   map[candleKey]models.Candle
}

func NewMemory() *Memory {
	return &Memory{
		snapshots: make(map[string][]models.ProfitSnapshot),
		outcomes:  make(map[string]models.TradeOutcome),
		candles:   make(map[candleKey]models.Candle),
	}
}

func (m *Memory) SaveSnapshots(_ context.Context, snaps []models.ProfitSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range snaps {
		m.snapshots[s.TradeID] = append(m.snapshots[s.TradeID], s)
	}
	return nil
}

func (m *Memory) LastSnapshot(_ context.Context, tradeID string) (models.ProfitSnapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.snapshots[tradeID]
	if len(list) == 0 {
		return models.ProfitSnapshot{}, false, nil
	}
	last := list[0]
	for _, s := range list[1:] {
		if !s.Time.Before(last.Time) {
			last = s
		}
	}
	return last, true, nil
}

func (m *Memory) Snapshots(tradeID string) []models.ProfitSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.ProfitSnapshot(nil), m.snapshots[tradeID]...)
}

func (m *Memory) RecordOutcome(_ context.Context, o models.TradeOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[o.TradeID] = o
	return nil
}

func (m *Memory) Outcomes(_ context.Context, instrument models.Instrument, limit int) ([]models.TradeOutcome, error) {
	m.mu.RLock()
	out := make([]models.TradeOutcome, 0, len(m.outcomes))
	for _, o := range m.outcomes {
		if instrument == "" || o.Instrument == instrument {
			out = append(out, o)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CloseTime.Equal(out[j].CloseTime) {
			return out[i].TradeID > out[j].TradeID
		}
		return out[i].CloseTime.After(out[j].CloseTime)
	})
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) UpsertCandles(_ context.Context, candles []models.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range candles {
		m.candles[candleKey{c.Instrument, c.Timeframe, c.Time.Unix()}] = c
	}
	return nil
}

// Candles: свечи пары в хронологическом порядке.
func (m *Memory) Candles(instrument models.Instrument, timeframe string) []models.Candle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Candle
	for k, c := range m.candles {
		if k.instrument == instrument && k.timeframe == timeframe {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

func (m *Memory) Close() error { return nil }
