package service

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"fx_bot/internal/models"
)

type RemoteConfig struct {
	URL             string
	Timeout         time.Duration
	SignalThreshold float64
	MinTrailingPips float64
	MaxTrailingPips float64
}

// Remote: HTTP-клиент сервера модели (POST /predict).
type Remote struct {
	cfg  RemoteConfig
	http *resty.Client
}

type wireCandle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
}

type predictRequest struct {
	Instrument string       `json:"instrument"`
	Timeframe  string       `json:"timeframe"`
	Candles    []wireCandle `json:"candles"`
}

// predictResponse: движения в единицах цены; trailing_move может отсутствовать.
type predictResponse struct {
	PredictedMove *float64 `json:"predicted_move"`
	TrailingMove  *float64 `json:"trailing_move"`
}

func NewRemote(cfg RemoteConfig) *Remote {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxTrailingPips <= 0 {
		cfg.MaxTrailingPips = 10
	}
	if cfg.MinTrailingPips <= 0 {
		cfg.MinTrailingPips = 1
	}
	rc := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	return &Remote{cfg: cfg, http: rc}
}

func (r *Remote) Predict(ctx context.Context, inst models.Instrument, timeframe string, candles []models.Candle) (models.Prediction, error) {
	body := predictRequest{Instrument: inst.String(), Timeframe: timeframe, Candles: make([]wireCandle, 0, len(candles))}
	for _, c := range candles {
		body.Candles = append(body.Candles, wireCandle{
			Time: c.Time, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume,
		})
	}

	var out predictResponse
	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/predict")
	if err != nil {
		return models.Prediction{}, errors.Wrapf(models.ErrTransientFeed, "predict %s %s: %v", inst, timeframe, err)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound || code == http.StatusUnprocessableEntity || code == http.StatusNoContent:
		return models.Prediction{}, errors.Wrapf(models.ErrModelUnavailable, "predict %s %s: http %d", inst, timeframe, code)
	case resp.IsError():
		return models.Prediction{}, errors.Wrapf(models.ErrTransientFeed, "predict %s %s: http %d", inst, timeframe, code)
	}
	if out.PredictedMove == nil {
		return models.Prediction{}, errors.Wrapf(models.ErrModelUnavailable, "predict %s %s: empty response", inst, timeframe)
	}

	return r.toPrediction(inst, *out.PredictedMove, out.TrailingMove), nil
}

// toPrediction переводит движение цены в пипсы; трейлинг зажат в [min, max].
func (r *Remote) toPrediction(inst models.Instrument, move float64, trailing *float64) models.Prediction {
	pip := inst.PipSize()
	pips := move / pip

	tr := r.cfg.MinTrailingPips
	if trailing != nil {
		tr = math.Max(r.cfg.MinTrailingPips, math.Min(*trailing/pip, r.cfg.MaxTrailingPips))
	}

	sig := models.SignalHold
	switch {
	case pips > r.cfg.SignalThreshold:
		sig = models.SignalBuy
	case pips < -r.cfg.SignalThreshold:
		sig = models.SignalSell
	}
	return models.Prediction{Signal: sig, PredictedPips: pips, TrailingPips: tr}
}
