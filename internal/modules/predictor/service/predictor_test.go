package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx_bot/internal/models"
	journal "fx_bot/internal/modules/journal/service"
)

func remoteFor(t *testing.T, h http.HandlerFunc) *Remote {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewRemote(RemoteConfig{URL: srv.URL, SignalThreshold: 0.003, MinTrailingPips: 1, MaxTrailingPips: 10})
}

func TestRemote_ConvertsMoveToPips(t *testing.T) {
	var req predictRequest
	r := remoteFor(t, func(w http.ResponseWriter, hr *http.Request) {
		assert.Equal(t, "/predict", hr.URL.Path)
		assert.NoError(t, json.NewDecoder(hr.Body).Decode(&req))
		_, _ = io.WriteString(w, `{"predicted_move": -0.72, "trailing_move": 0.25}`)
	})

	candles := []models.Candle{{Instrument: "USD_JPY", Timeframe: "H1", Time: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), Close: 150.1}}
	p, err := r.Predict(context.Background(), "USD_JPY", "H1", candles)
	require.NoError(t, err)

	assert.Equal(t, models.SignalSell, p.Signal)
	assert.InDelta(t, -72, p.PredictedPips, 1e-9)
	assert.Equal(t, 10.0, p.TrailingPips, "trailing clamped to max")
	assert.Equal(t, "USD_JPY", req.Instrument)
	require.Len(t, req.Candles, 1)
	assert.Equal(t, 150.1, req.Candles[0].Close)
}

func TestRemote_ToPrediction(t *testing.T) {
	r := NewRemote(RemoteConfig{URL: "http://unused", SignalThreshold: 0.003, MinTrailingPips: 1, MaxTrailingPips: 10})
	tiny := 0.00005

	cases := []struct {
		name     string
		inst     models.Instrument
		move     float64
		trailing *float64
		signal   models.Signal
		pips     float64
		trail    float64
	}{
		{"buy eur", "EUR_USD", 0.0060, nil, models.SignalBuy, 60, 1},
		{"hold near zero", "EUR_USD", 0.0000002, nil, models.SignalHold, 0.002, 1},
		{"trailing min clamp", "EUR_USD", 0.001, &tiny, models.SignalBuy, 10, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := r.toPrediction(tc.inst, tc.move, tc.trailing)
			assert.Equal(t, tc.signal, p.Signal)
			assert.InDelta(t, tc.pips, p.PredictedPips, 1e-9)
			assert.InDelta(t, tc.trail, p.TrailingPips, 1e-9)
		})
	}
}

func TestRemote_ModelUnavailable(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusUnprocessableEntity} {
		r := remoteFor(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		})
		_, err := r.Predict(context.Background(), "EUR_USD", "M5", nil)
		assert.True(t, errors.Is(err, models.ErrModelUnavailable), "status %d", status)
	}

	r := remoteFor(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	_, err := r.Predict(context.Background(), "EUR_USD", "M5", nil)
	assert.True(t, errors.Is(err, models.ErrModelUnavailable))

	r = remoteFor(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err = r.Predict(context.Background(), "EUR_USD", "M5", nil)
	assert.True(t, errors.Is(err, models.ErrTransientFeed))
}

type fakeCandles struct {
	candles []models.Candle
	err     error
	count   int
}

func (f *fakeCandles) Candles(_ context.Context, _ models.Instrument, _ string, count int) ([]models.Candle, error) {
	f.count = count
	return f.candles, f.err
}

func TestService_RecordsCandlesEvenWhenDisabled(t *testing.T) {
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	src := &fakeCandles{candles: []models.Candle{
		{Instrument: "EUR_USD", Timeframe: "M15", Time: t0, Close: 1.1},
		{Instrument: "EUR_USD", Timeframe: "M15", Time: t0.Add(15 * time.Minute), Close: 1.2},
	}}
	store := journal.NewMemory()
	svc := New(NewRecorder(src, store, 0), Disabled{})

	_, err := svc.Predict(context.Background(), "EUR_USD", "M15")
	assert.True(t, errors.Is(err, models.ErrModelUnavailable))
	assert.Equal(t, 500, src.count)
	assert.Len(t, store.Candles("EUR_USD", "M15"), 2)
}

func TestService_CandleFailureIsTransient(t *testing.T) {
	src := &fakeCandles{err: errors.Wrap(models.ErrTransientFeed, "503")}
	svc := New(NewRecorder(src, journal.NewMemory(), 500), Disabled{})

	_, err := svc.Predict(context.Background(), "EUR_USD", "M5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrTransientFeed))
}

func TestService_NoHistoryMeansNoOpinion(t *testing.T) {
	svc := New(NewRecorder(&fakeCandles{}, journal.NewMemory(), 500), Disabled{})

	_, err := svc.Predict(context.Background(), "EUR_USD", "M5")
	assert.True(t, errors.Is(err, models.ErrModelUnavailable))
}
