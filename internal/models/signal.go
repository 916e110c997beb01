package models

type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Side: BUY -> long, SELL -> short. Для HOLD ok=false.
func (s Signal) Side() (Side, bool) {
	switch s {
	case SignalBuy:
		return SideLong, true
	case SignalSell:
		return SideShort, true
	default:
		return "", false
	}
}

// Prediction: ответ предсказательной модели по паре (инструмент, таймфрейм).
type Prediction struct {
	Signal        Signal
	PredictedPips float64
	TrailingPips  float64
}

// SignalCandidate живёт в пределах одного цикла агрегатора.
type SignalCandidate struct {
	Instrument    Instrument
	Timeframe     string
	Signal        Signal
	PredictedPips float64
	TrailingPips  float64
}
