package models

import "strings"

// Instrument: символ OANDA вида EUR_USD.
type Instrument string

func (i Instrument) String() string { return string(i) }

// IsJPY: котировка в иенах (USD_JPY, EUR_JPY, ...).
func (i Instrument) IsJPY() bool {
	return strings.Contains(strings.ToUpper(string(i)), "JPY")
}

// PipSize: 0.01 для JPY-пар, иначе 0.0001.
func (i Instrument) PipSize() float64 {
	if i.IsJPY() {
		return 0.01
	}
	return 0.0001
}

// PricePrecision: сколько знаков после запятой принимает брокер в цене ордера.
func (i Instrument) PricePrecision() int32 {
	if i.IsJPY() {
		return 3
	}
	return 5
}

// ProfitPips считает прибыль в пипсах по стороне позиции.
// Направление берём только из side, не из знака текущей прибыли.
func ProfitPips(inst Instrument, side Side, entry, current float64) float64 {
	pips := (current - entry) / inst.PipSize()
	if side == SideShort {
		return -pips
	}
	return pips
}

// PriceAtPips сдвигает цену на N пипсов в сторону прибыли для side (N<0: в сторону убытка).
func PriceAtPips(inst Instrument, side Side, price, pips float64) float64 {
	delta := pips * inst.PipSize()
	if side == SideShort {
		return price - delta
	}
	return price + delta
}
