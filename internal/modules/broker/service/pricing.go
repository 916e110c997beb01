package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"fx_bot/internal/models"
)

// MidPrice: середина между лучшими bid и ask.
func (c *Client) MidPrice(ctx context.Context, inst models.Instrument) (float64, error) {
	var payload pricingResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("instruments", inst.String()).
		SetResult(&payload).
		Get(c.accountPath("/pricing"))
	if err := feedError("pricing "+inst.String(), resp, err); err != nil {
		return 0, err
	}

	for _, p := range payload.Prices {
		if p.Instrument != inst.String() {
			continue
		}
		if len(p.Bids) == 0 || len(p.Asks) == 0 {
			return 0, errors.Wrapf(models.ErrTransientFeed, "pricing %s: empty book", inst)
		}
		bid, err := parseNum("bid", p.Bids[0].Price)
		if err != nil {
			return 0, errors.Wrapf(models.ErrTransientFeed, "pricing %s: %v", inst, err)
		}
		ask, err := parseNum("ask", p.Asks[0].Price)
		if err != nil {
			return 0, errors.Wrapf(models.ErrTransientFeed, "pricing %s: %v", inst, err)
		}
		return bid.Add(ask).Div(decimal.NewFromInt(2)).InexactFloat64(), nil
	}
	return 0, errors.Wrapf(models.ErrTransientFeed, "pricing %s: instrument missing in response", inst)
}
