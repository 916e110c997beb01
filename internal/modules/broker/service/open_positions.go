package service

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"fx_bot/internal/models"
)

// OpenPositions: открытые сделки счёта (ground truth).
func (c *Client) OpenPositions(ctx context.Context) ([]models.OpenPosition, error) {
	var payload openTradesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&payload).
		Get(c.accountPath("/openTrades"))
	if err := feedError("open trades", resp, err); err != nil {
		return nil, err
	}

	out := make([]models.OpenPosition, 0, len(payload.Trades))
	for _, t := range payload.Trades {
		p, err := toPosition(t)
		if err != nil {
			return nil, errors.Wrapf(models.ErrTransientFeed, "open trades: trade %s: %v", t.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func toPosition(t trade) (models.OpenPosition, error) {
	units, err := parseNum("currentUnits", t.CurrentUnits)
	if err != nil {
		return models.OpenPosition{}, err
	}
	entry, err := parseNum("price", t.Price)
	if err != nil {
		return models.OpenPosition{}, err
	}
	var upl float64
	if t.UnrealizedPL != "" {
		d, err := parseNum("unrealizedPL", t.UnrealizedPL)
		if err != nil {
			return models.OpenPosition{}, err
		}
		upl = d.InexactFloat64()
	}
	opened, _ := time.Parse(time.RFC3339Nano, t.OpenTime)

	u := units.InexactFloat64()
	return models.OpenPosition{
		TradeID:      t.ID,
		Instrument:   models.Instrument(t.Instrument),
		Side:         models.SideFromUnits(u),
		EntryPrice:   entry.InexactFloat64(),
		Units:        u,
		UnrealizedPL: upl,
		OpenTime:     opened,
	}, nil
}
