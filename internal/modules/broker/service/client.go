package service

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"fx_bot/internal/models"
)

const (
	practiceURL = "https://api-fxpractice.oanda.com"
	liveURL     = "https://api-fxtrade.oanda.com"
)

type Config struct {
	Mode      string // practice | live
	BaseURL   string // переопределяет mode (тесты, прокси)
	AccountID string
	APIKey    string
	Timeout   time.Duration
}

// Client: OANDA v20 REST: позиции, цены, ордера, свечи, проверка связи.
type Client struct {
	http      *resty.Client
	accountID string
}

func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = practiceURL
		if cfg.Mode == "live" {
			base = liveURL
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	rc := resty.New().
		SetBaseURL(strings.TrimSuffix(base, "/")).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Accept-Datetime-Format", "RFC3339").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		// ордера и закрытия не повторяем: они не идемпотентны
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || resp.StatusCode() >= 500 || resp.StatusCode() == http.StatusTooManyRequests
		})

	return &Client{http: rc, accountID: cfg.AccountID}
}

func (c *Client) accountPath(suffix string) string {
	return "/v3/accounts/" + c.accountID + suffix
}

// feedError: транспорт/таймаут/не-2xx на чтении: временная ошибка ленты.
func feedError(op string, resp *resty.Response, err error) error {
	if err != nil {
		return errors.Wrapf(models.ErrTransientFeed, "%s: %v", op, err)
	}
	if resp.IsError() {
		return errors.Wrapf(models.ErrTransientFeed, "%s: http %d: %s", op, resp.StatusCode(), apiMessage(resp))
	}
	return nil
}

// orderError: 4xx: отказ брокера, остальное: временная ошибка.
func orderError(op string, resp *resty.Response, err error) error {
	if err != nil {
		return errors.Wrapf(models.ErrTransientFeed, "%s: %v", op, err)
	}
	code := resp.StatusCode()
	switch {
	case code >= 400 && code < 500:
		return errors.Wrapf(models.ErrOrderRejected, "%s: http %d: %s", op, code, apiMessage(resp))
	case resp.IsError():
		return errors.Wrapf(models.ErrTransientFeed, "%s: http %d: %s", op, code, apiMessage(resp))
	}
	return nil
}

func apiMessage(resp *resty.Response) string {
	var e apiError
	if err := sonic.Unmarshal(resp.Body(), &e); err == nil && e.ErrorMessage != "" {
		if e.ErrorCode != "" {
			return e.ErrorCode + ": " + e.ErrorMessage
		}
		return e.ErrorMessage
	}
	return strings.TrimSpace(string(resp.Body()))
}

func parseNum(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s parse %q: %w", name, s, err)
	}
	return d, nil
}

// FormatPrice: цена с точностью, которую принимает OANDA для инструмента.
func FormatPrice(inst models.Instrument, px float64) string {
	return decimal.NewFromFloat(px).StringFixed(inst.PricePrecision())
}
