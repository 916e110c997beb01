package service

import (
	"context"

	"fx_bot/internal/models"
)

// Store: журнал для обратной связи модели: срезы прибыли, итоги сделок и свечи.
type Store interface {
	SaveSnapshots(ctx context.Context, snaps []models.ProfitSnapshot) error
	LastSnapshot(ctx context.Context, tradeID string) (models.ProfitSnapshot, bool, error)
	RecordOutcome(ctx context.Context, o models.TradeOutcome) error
	// Outcomes: последние итоги, новые первыми; пустой instrument значит все инструменты.
	Outcomes(ctx context.Context, instrument models.Instrument, limit int) ([]models.TradeOutcome, error)
	UpsertCandles(ctx context.Context, candles []models.Candle) error
	Close() error
}

const (
	createTradeProfits = `CREATE TABLE IF NOT EXISTS trade_profits (
	trade_id    TEXT NOT NULL,
	instrument  TEXT NOT NULL,
	profit_pips DOUBLE PRECISION NOT NULL,
	profit_usd  DOUBLE PRECISION NOT NULL,
	ts          TIMESTAMP NOT NULL
)`
	createTradeProfitsIdx = `CREATE INDEX IF NOT EXISTS trade_profits_trade_ts ON trade_profits (trade_id, ts)`

	createTradeHistory = `CREATE TABLE IF NOT EXISTS trade_history (
	trade_id          TEXT PRIMARY KEY,
	instrument        TEXT NOT NULL,
	final_profit_pips DOUBLE PRECISION NOT NULL,
	final_profit_usd  DOUBLE PRECISION NOT NULL,
	close_ts          TIMESTAMP NOT NULL
)`

	createCandles = `CREATE TABLE IF NOT EXISTS candles (
	instrument TEXT NOT NULL,
	timeframe  TEXT NOT NULL,
	ts         TIMESTAMP NOT NULL,
	open       DOUBLE PRECISION NOT NULL,
	high       DOUBLE PRECISION NOT NULL,
	low        DOUBLE PRECISION NOT NULL,
	close      DOUBLE PRECISION NOT NULL,
	volume     DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (instrument, timeframe, ts)
)`
)

var schema = []string{createTradeProfits, createTradeProfitsIdx, createTradeHistory, createCandles}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 20
	}
	return limit
}
