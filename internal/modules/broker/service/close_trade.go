package service

import (
	"context"

	"github.com/pkg/errors"

	"fx_bot/internal/models"
)

// CloseTrade закрывает сделку целиком по рынку.
func (c *Client) CloseTrade(ctx context.Context, tradeID string) error {
	var payload orderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(closeRequest{Units: "ALL"}).
		SetResult(&payload).
		Put(c.accountPath("/trades/" + tradeID + "/close"))
	if err := orderError("close trade "+tradeID, resp, err); err != nil {
		return err
	}
	if tx := payload.OrderCancelTransaction; tx != nil {
		return errors.Wrapf(models.ErrOrderRejected, "close trade %s: cancelled: %s", tradeID, tx.Reason)
	}
	return nil
}
