package models

import "time"

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// SideFromUnits: у OANDA знак units задаёт направление сделки.
func SideFromUnits(units float64) Side {
	if units < 0 {
		return SideShort
	}
	return SideLong
}

// Sign: множитель для units ордера.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// OpenPosition: открытая сделка в том виде, как её отдаёт брокер (ground truth).
type OpenPosition struct {
	TradeID      string
	Instrument   Instrument
	Side         Side
	EntryPrice   float64
	Units        float64
	UnrealizedPL float64
	OpenTime     time.Time
}

type OrderRequest struct {
	Instrument Instrument
	Units      float64 // >0 long, <0 short
	StopLoss   float64
	TakeProfit float64
	ClientID   string
}

type OrderResult struct {
	OrderID string
	TradeID string
	Price   float64
}

type CloseReason string

const (
	CloseTakeProfit   CloseReason = "TAKE_PROFIT"
	CloseTrailingStop CloseReason = "TRAILING_STOP"
)

type ExitAction int

const (
	ExitHold ExitAction = iota
	ExitClose
)

// ExitDecision: результат одной атомарной оценки позиции.
type ExitDecision struct {
	Action     ExitAction
	Reason     CloseReason
	ProfitPips float64
	PeakPips   float64
	Activated  bool // пик впервые пересёк порог активации на этом шаге
}

func (d ExitDecision) ShouldClose() bool { return d.Action == ExitClose }
