package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fx_bot/internal/models"
	health "fx_bot/internal/modules/health/service"
	"fx_bot/internal/state"
)

func TestRenderPositions(t *testing.T) {
	assert.Contains(t, renderPositions(nil, state.Snapshot{}), "Открытых позиций нет")

	out := renderPositions([]models.OpenPosition{
		{TradeID: "101", Instrument: "EUR_USD", Side: models.SideLong, Units: 1000, EntryPrice: 1.1, UnrealizedPL: 2.5},
		{TradeID: "102", Instrument: "USD_JPY", Side: models.SideShort, Units: -1000, EntryPrice: 150, UnrealizedPL: -1.25},
	}, state.Snapshot{Peaks: map[string]float64{"101": 24}})

	assert.Contains(t, out, "EUR_USD")
	assert.Contains(t, out, "SHORT")
	assert.Contains(t, out, "24.0")
	assert.Contains(t, out, "-1.25")
}

func TestRenderStats(t *testing.T) {
	assert.Contains(t, renderStats(nil), "Закрытых сделок пока нет")

	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	out := renderStats([]models.TradeOutcome{
		{TradeID: "1", Instrument: "EUR_USD", FinalProfitPips: 20, FinalProfitUSD: 2, CloseTime: at},
		{TradeID: "2", Instrument: "GBP_USD", FinalProfitPips: -5, FinalProfitUSD: -0.5, CloseTime: at},
	})
	assert.Contains(t, out, "win 1/2")
	assert.Contains(t, out, "15.0")
	assert.Contains(t, out, "1.50")
}

func TestRenderStatus(t *testing.T) {
	until := time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC)
	out := renderStatus(
		health.Snapshot{BrokerConnected: false, UptimeSec: 90, LastJobs: map[string]time.Time{"risk": until}},
		state.Snapshot{
			Peaks:     map[string]float64{"7": 30},
			Cooldowns: map[models.Instrument]time.Time{"EUR_USD": until},
		},
	)
	assert.Contains(t, out, "DISCONNECTED")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "7: 30.0 pips")
	assert.Contains(t, out, "EUR_USD до 10:05:00")
}

func TestEscapeHTML(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt; &amp; c", escapeHTML("a <b> & c"))
}
