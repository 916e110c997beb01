package service

import (
	"context"

	"github.com/pkg/errors"

	"fx_bot/internal/models"
	"fx_bot/pkg/logger"
)

// Recorder тянет закрытые свечи у брокера и складывает их в журнал по ключу (инструмент, таймфрейм, время).
type Recorder struct {
	source CandleSource
	store  CandleStore
	count  int
}

func NewRecorder(source CandleSource, store CandleStore, count int) *Recorder {
	if count <= 0 {
		count = 500
	}
	return &Recorder{source: source, store: store, count: count}
}

func (r *Recorder) Record(ctx context.Context, inst models.Instrument, timeframe string) ([]models.Candle, error) {
	candles, err := r.source.Candles(ctx, inst, timeframe, r.count)
	if err != nil {
		return nil, errors.Wrapf(err, "record candles %s %s", inst, timeframe)
	}
	if len(candles) == 0 {
		return nil, nil
	}
	// запись в журнал не должна ломать предсказание
	if err := r.store.UpsertCandles(ctx, candles); err != nil {
		logger.Error("[PREDICT] %s %s: свечи не сохранены: %v", inst, timeframe, err)
	}
	return candles, nil
}
