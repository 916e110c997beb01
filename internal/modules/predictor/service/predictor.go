package service

import (
	"context"

	"github.com/pkg/errors"

	"fx_bot/internal/metrics"
	"fx_bot/internal/models"
	"fx_bot/pkg/logger"
)

type CandleSource interface {
	Candles(ctx context.Context, inst models.Instrument, granularity string, count int) ([]models.Candle, error)
}

type CandleStore interface {
	UpsertCandles(ctx context.Context, candles []models.Candle) error
}

// Model: предсказание по последним свечам пары.
type Model interface {
	Predict(ctx context.Context, inst models.Instrument, timeframe string, candles []models.Candle) (models.Prediction, error)
}

// Service: сначала обновляем историю свечей, затем спрашиваем модель.
type Service struct {
	recorder *Recorder
	model    Model
}

func New(recorder *Recorder, model Model) *Service {
	return &Service{recorder: recorder, model: model}
}

func (s *Service) Predict(ctx context.Context, inst models.Instrument, timeframe string) (models.Prediction, error) {
	candles, err := s.recorder.Record(ctx, inst, timeframe)
	if err != nil {
		metrics.RecordFeedError("candles")
		return models.Prediction{}, err
	}
	if len(candles) == 0 {
		return models.Prediction{}, errors.Wrapf(models.ErrModelUnavailable, "%s %s: no candles", inst, timeframe)
	}

	p, err := s.model.Predict(ctx, inst, timeframe, candles)
	if err != nil {
		return models.Prediction{}, err
	}
	logger.Info("[PREDICT] %s %s: signal=%s predicted_pips=%.2f trailing_pips=%.2f",
		inst, timeframe, p.Signal, p.PredictedPips, p.TrailingPips)
	return p, nil
}
