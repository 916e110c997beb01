package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"fx_bot/internal/models"
)

// PlaceMarketOrder: рыночный FOK-ордер с SL/TP, привязанными к исполнению.
func (c *Client) PlaceMarketOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error) {
	if req.Units == 0 {
		return models.OrderResult{}, errors.Wrap(models.ErrOrderRejected, "place order: zero units")
	}
	clientID := req.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	order := marketOrder{
		Type:             "MARKET",
		Instrument:       req.Instrument.String(),
		Units:            decimal.NewFromFloat(req.Units).StringFixed(0),
		TimeInForce:      "FOK",
		PositionFill:     "DEFAULT",
		ClientExtensions: &clientExtensions{ID: clientID},
	}
	if req.StopLoss > 0 {
		order.StopLossOnFill = &onFill{Price: FormatPrice(req.Instrument, req.StopLoss), TimeInForce: "GTC"}
	}
	if req.TakeProfit > 0 {
		order.TakeProfitOnFill = &onFill{Price: FormatPrice(req.Instrument, req.TakeProfit), TimeInForce: "GTC"}
	}

	var payload orderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(orderRequest{Order: order}).
		SetResult(&payload).
		Post(c.accountPath("/orders"))
	if err := orderError("place order "+req.Instrument.String(), resp, err); err != nil {
		return models.OrderResult{}, err
	}

	if tx := payload.OrderCancelTransaction; tx != nil {
		return models.OrderResult{}, errors.Wrapf(models.ErrOrderRejected, "place order %s: cancelled: %s", req.Instrument, tx.Reason)
	}
	fill := payload.OrderFillTransaction
	if fill == nil {
		return models.OrderResult{}, errors.Wrapf(models.ErrOrderRejected, "place order %s: no fill", req.Instrument)
	}

	res := models.OrderResult{OrderID: fill.OrderID}
	if payload.OrderCreateTransaction != nil && res.OrderID == "" {
		res.OrderID = payload.OrderCreateTransaction.ID
	}
	pxStr := fill.Price
	if fill.TradeOpened != nil {
		res.TradeID = fill.TradeOpened.TradeID
		if fill.TradeOpened.Price != "" {
			pxStr = fill.TradeOpened.Price
		}
	}
	if pxStr != "" {
		if px, err := parseNum("fill price", pxStr); err == nil {
			res.Price = px.InexactFloat64()
		}
	}
	return res, nil
}
