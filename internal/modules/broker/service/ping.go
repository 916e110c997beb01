package service

import (
	"context"

	"github.com/pkg/errors"

	"fx_bot/internal/models"
)

// Ping: дешёвый запрос сводки счёта для heartbeat.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(c.accountPath("/summary"))
	if err != nil {
		return errors.Wrapf(models.ErrConnectivityLost, "ping: %v", err)
	}
	if resp.IsError() {
		return errors.Wrapf(models.ErrConnectivityLost, "ping: http %d: %s", resp.StatusCode(), apiMessage(resp))
	}
	return nil
}
