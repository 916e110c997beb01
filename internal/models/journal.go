package models

import "time"

type Candle struct {
	Instrument Instrument
	Timeframe  string
	Time       time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
}

// ProfitSnapshot: срез прибыли открытой сделки на момент опроса.
type ProfitSnapshot struct {
	TradeID    string
	Instrument Instrument
	ProfitPips float64
	ProfitUSD  float64
	Time       time.Time
}

// TradeOutcome: итог закрытой сделки, читается моделью при переобучении.
type TradeOutcome struct {
	TradeID         string
	Instrument      Instrument
	FinalProfitPips float64
	FinalProfitUSD  float64
	CloseTime       time.Time
}
