package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx_bot/internal/models"
)

var base = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func TestStore_LastSnapshot(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, ok, err := s.LastSnapshot(ctx, "42")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.SaveSnapshots(ctx, []models.ProfitSnapshot{
				{TradeID: "42", Instrument: "EUR_USD", ProfitPips: 5, ProfitUSD: 0.5, Time: base},
				{TradeID: "43", Instrument: "USD_JPY", ProfitPips: -3, ProfitUSD: -0.2, Time: base},
			}))
			require.NoError(t, s.SaveSnapshots(ctx, []models.ProfitSnapshot{
				{TradeID: "42", Instrument: "EUR_USD", ProfitPips: 12.5, ProfitUSD: 1.25, Time: base.Add(time.Minute)},
			}))

			snap, ok, err := s.LastSnapshot(ctx, "42")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 12.5, snap.ProfitPips)
			assert.Equal(t, models.Instrument("EUR_USD"), snap.Instrument)
			assert.True(t, snap.Time.Equal(base.Add(time.Minute)))
		})
	}
}

func TestStore_OutcomesNewestFirstAndIdempotent(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.RecordOutcome(ctx, models.TradeOutcome{TradeID: "1", Instrument: "EUR_USD", FinalProfitPips: 20, CloseTime: base}))
			require.NoError(t, s.RecordOutcome(ctx, models.TradeOutcome{TradeID: "2", Instrument: "USD_JPY", FinalProfitPips: -15, CloseTime: base.Add(time.Hour)}))
			require.NoError(t, s.RecordOutcome(ctx, models.TradeOutcome{TradeID: "3", Instrument: "EUR_USD", FinalProfitPips: 30, CloseTime: base.Add(2 * time.Hour)}))
			// повторная запись того же trade_id перезаписывает итог
			require.NoError(t, s.RecordOutcome(ctx, models.TradeOutcome{TradeID: "1", Instrument: "EUR_USD", FinalProfitPips: 22, CloseTime: base}))

			all, err := s.Outcomes(ctx, "", 10)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []string{"3", "2", "1"}, []string{all[0].TradeID, all[1].TradeID, all[2].TradeID})
			assert.Equal(t, 22.0, all[2].FinalProfitPips)

			eur, err := s.Outcomes(ctx, "EUR_USD", 1)
			require.NoError(t, err)
			require.Len(t, eur, 1)
			assert.Equal(t, "3", eur[0].TradeID)
		})
	}
}

func TestStore_UpsertCandlesByKey(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := models.Candle{Instrument: "EUR_USD", Timeframe: "M5", Time: base, Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15, Volume: 100}
			require.NoError(t, s.UpsertCandles(ctx, []models.Candle{c}))
			c.Close = 1.16
			c2 := c
			c2.Time = base.Add(5 * time.Minute)
			require.NoError(t, s.UpsertCandles(ctx, []models.Candle{c, c2}))

			switch st := s.(type) {
			case *Memory:
				got := st.Candles("EUR_USD", "M5")
				require.Len(t, got, 2)
				assert.Equal(t, 1.16, got[0].Close)
			case *SQLite:
				n, err := st.CandleCount(ctx, "EUR_USD", "M5")
				require.NoError(t, err)
				assert.Equal(t, 2, n)
			}
		})
	}
}
