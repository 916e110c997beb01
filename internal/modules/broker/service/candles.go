package service

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"fx_bot/internal/models"
)

// Candles: только закрытые mid-свечи, старые первыми.
func (c *Client) Candles(ctx context.Context, inst models.Instrument, granularity string, count int) ([]models.Candle, error) {
	var payload candlesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"granularity": granularity,
			"count":       strconv.Itoa(count),
			"price":       "M",
		}).
		SetResult(&payload).
		Get("/v3/instruments/" + inst.String() + "/candles")
	if err := feedError("candles "+inst.String(), resp, err); err != nil {
		return nil, err
	}

	out := make([]models.Candle, 0, len(payload.Candles))
	for _, cd := range payload.Candles {
		if !cd.Complete || cd.Mid == nil {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, cd.Time)
		if err != nil {
			return nil, errors.Wrapf(models.ErrTransientFeed, "candles %s: time %q: %v", inst, cd.Time, err)
		}
		var ohlc [4]float64
		for i, s := range []string{cd.Mid.O, cd.Mid.H, cd.Mid.L, cd.Mid.C} {
			d, err := parseNum("ohlc", s)
			if err != nil {
				return nil, errors.Wrapf(models.ErrTransientFeed, "candles %s: %v", inst, err)
			}
			ohlc[i] = d.InexactFloat64()
		}
		out = append(out, models.Candle{
			Instrument: inst,
			Timeframe:  granularity,
			Time:       ts.UTC(),
			Open:       ohlc[0],
			High:       ohlc[1],
			Low:        ohlc[2],
			Close:      ohlc[3],
			Volume:     cd.Volume,
		})
	}
	return out, nil
}
