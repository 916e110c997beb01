package state

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx_bot/internal/models"
)

var defaultRules = Rules{TakeProfitPips: 70, ActivationThreshold: 20, TrailingGap: 10}

func TestRecordPeak_IsRunningMax(t *testing.T) {
	s := New()
	seq := []float64{3, -2, 7, 7, 1, 12, 4}
	want := []float64{3, 3, 7, 7, 7, 12, 12}

	for i, p := range seq {
		got := s.RecordPeak("T1", p)
		assert.Equal(t, want[i], got, "step %d", i)
		stored, ok := s.Peak("T1")
		require.True(t, ok)
		assert.Equal(t, want[i], stored)
	}
}

func TestEvaluate_TrailingExample(t *testing.T) {
	s := New()
	profits := []float64{5, 25, 30, 18}
	wantPeaks := []float64{5, 25, 30, 30}

	for i, p := range profits {
		dec := s.Evaluate("T1", "EUR_USD", p, defaultRules)
		assert.Equal(t, wantPeaks[i], dec.PeakPips, "peak at step %d", i+1)
		if i < 3 {
			assert.False(t, dec.ShouldClose(), "no close expected at step %d", i+1)
		} else {
			require.True(t, dec.ShouldClose())
			assert.Equal(t, models.CloseTrailingStop, dec.Reason)
		}
	}
}

func TestEvaluate_ActivationFlaggedOnce(t *testing.T) {
	s := New()
	assert.False(t, s.Evaluate("T1", "EUR_USD", 10, defaultRules).Activated)
	assert.True(t, s.Evaluate("T1", "EUR_USD", 21, defaultRules).Activated)
	assert.False(t, s.Evaluate("T1", "EUR_USD", 25, defaultRules).Activated)
	// пик 25, прибыль упала до 16: откат 9 < 10, держим
	dec := s.Evaluate("T1", "EUR_USD", 16, defaultRules)
	assert.False(t, dec.ShouldClose())
	assert.Equal(t, 25.0, dec.PeakPips)
}

func TestEvaluate_TakeProfitPrecedence(t *testing.T) {
	s := New()
	dec := s.Evaluate("T1", "EUR_USD", 75, defaultRules)

	require.True(t, dec.ShouldClose())
	assert.Equal(t, models.CloseTakeProfit, dec.Reason)
	_, ok := s.Peak("T1")
	assert.False(t, ok, "take-profit must not register a trailing evaluation")
}

func TestEvaluate_BelowActivationNeverTrails(t *testing.T) {
	s := New()
	s.Evaluate("T1", "EUR_USD", 19, defaultRules)
	dec := s.Evaluate("T1", "EUR_USD", -40, defaultRules)
	assert.False(t, dec.ShouldClose())
	assert.Equal(t, 19.0, dec.PeakPips)
}

func TestMarkClosed_ClearsStateAndStartsCooldown(t *testing.T) {
	s := New()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s.Evaluate("T1", "GBP_USD", 30, defaultRules)
	s.SetProfit("GBP_USD", 30, now)

	s.MarkClosed("T1", "GBP_USD", now.Add(5*time.Minute))

	_, ok := s.Peak("T1")
	assert.False(t, ok)
	_, ok = s.Profit("GBP_USD", now, time.Minute)
	assert.False(t, ok)
	assert.True(t, s.InCooldown("GBP_USD", now))
	assert.True(t, s.InCooldown("GBP_USD", now.Add(5*time.Minute-time.Nanosecond)))
	assert.False(t, s.InCooldown("GBP_USD", now.Add(5*time.Minute)))
	assert.False(t, s.InCooldown("EUR_USD", now), "cooldown is per instrument")
}

func TestProfit_StaleEntryIgnored(t *testing.T) {
	s := New()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s.SetProfit("EUR_USD", 12.5, now)

	p, ok := s.Profit("EUR_USD", now.Add(30*time.Second), time.Minute)
	require.True(t, ok)
	assert.Equal(t, 12.5, p)

	_, ok = s.Profit("EUR_USD", now.Add(2*time.Minute), time.Minute)
	assert.False(t, ok)
}

func TestPrune_DropsClosedTrades(t *testing.T) {
	s := New()
	now := time.Now()
	s.RecordPeak("A", 10)
	s.RecordPeak("B", 20)
	s.SetProfit("EUR_USD", 10, now)
	s.SetProfit("USD_JPY", 20, now)

	removed := s.Prune([]models.OpenPosition{{TradeID: "A", Instrument: "EUR_USD"}})

	assert.Equal(t, []string{"B"}, removed)
	_, ok := s.Peak("B")
	assert.False(t, ok)
	_, ok = s.Profit("USD_JPY", now, 0)
	assert.False(t, ok)
	_, ok = s.Profit("EUR_USD", now, 0)
	assert.True(t, ok)
}

func TestStore_ConcurrentPeakUpdates(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				id := fmt.Sprintf("T%d", i%4)
				s.Evaluate(id, "EUR_USD", float64(i%60), defaultRules)
				s.InCooldown("EUR_USD", time.Now())
				s.Snapshot(time.Now())
			}
		}(w)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		p, ok := s.Peak(fmt.Sprintf("T%d", i))
		require.True(t, ok)
		assert.GreaterOrEqual(t, p, 56.0)
	}
}
