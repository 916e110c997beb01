package service

import (
	"context"

	"github.com/pkg/errors"

	"fx_bot/internal/models"
)

// Disabled используется, когда модель не настроена. Мнения нет никогда, свечи при этом продолжают копиться.
type Disabled struct{}

func (Disabled) Predict(_ context.Context, inst models.Instrument, timeframe string, _ []models.Candle) (models.Prediction, error) {
	return models.Prediction{}, errors.Wrapf(models.ErrModelUnavailable, "%s %s: predictor disabled", inst, timeframe)
}
