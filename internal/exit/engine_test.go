package exit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx_bot/internal/models"
	"fx_bot/internal/state"
)

type fakeBroker struct {
	mu        sync.Mutex
	positions []models.OpenPosition
	posErr    error
	mids      map[models.Instrument]float64
	midErr    map[models.Instrument]error
	closeErr  error
	closed    []string
	midCalls  int

	entered chan struct{}
	block   chan struct{} // если не nil, OpenPositions ждёт его закрытия
}

func (f *fakeBroker) OpenPositions(ctx context.Context) ([]models.OpenPosition, error) {
	if f.block != nil {
		f.entered <- struct{}{}
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.posErr != nil {
		return nil, f.posErr
	}
	return append([]models.OpenPosition(nil), f.positions...), nil
}

func (f *fakeBroker) MidPrice(ctx context.Context, inst models.Instrument) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.midCalls++
	if err := f.midErr[inst]; err != nil {
		return 0, err
	}
	return f.mids[inst], nil
}

func (f *fakeBroker) CloseTrade(ctx context.Context, tradeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closeErr != nil {
		return f.closeErr
	}
	f.closed = append(f.closed, tradeID)
	kept := f.positions[:0]
	for _, p := range f.positions {
		if p.TradeID != tradeID {
			kept = append(kept, p)
		}
	}
	f.positions = kept
	return nil
}

func (f *fakeBroker) setMid(inst models.Instrument, px float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mids[inst] = px
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *fakeNotifier) SendF(_ context.Context, format string, args ...any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, fmt.Sprintf(format, args...))
	return nil
}

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newEngine(b *fakeBroker, n *fakeNotifier, store *state.Store) *Engine {
	cfg := Config{
		Rules:          state.Rules{TakeProfitPips: 70, ActivationThreshold: 20, TrailingGap: 10},
		Cooldown:       5 * time.Minute,
		ProfitCacheTTL: 90 * time.Second,
		CallTimeout:    time.Second,
	}
	return New(cfg, store, b, n, func() time.Time { return t0 })
}

func jpyLong() models.OpenPosition {
	return models.OpenPosition{TradeID: "42", Instrument: "USD_JPY", Side: models.SideLong, EntryPrice: 150.00, Units: 1000}
}

func TestRunCycle_TrailingExample(t *testing.T) {
	b := &fakeBroker{positions: []models.OpenPosition{jpyLong()}, mids: map[models.Instrument]float64{}}
	n := &fakeNotifier{}
	store := state.New()
	e := newEngine(b, n, store)

	mids := []float64{150.05, 150.25, 150.30, 150.18}
	wantPeak := []float64{5, 25, 30}

	for i, mid := range mids {
		b.setMid("USD_JPY", mid)
		res, err := e.RunCycle(context.Background())
		require.NoError(t, err)

		if i < 3 {
			assert.Empty(t, res.Closed, "cycle %d", i+1)
			peak, ok := store.Peak("42")
			require.True(t, ok)
			assert.InDelta(t, wantPeak[i], peak, 1e-6)
			continue
		}
		require.Len(t, res.Closed, 1)
		assert.Equal(t, models.CloseTrailingStop, res.Closed[0].Reason)
		assert.InDelta(t, 30, res.Closed[0].PeakPips, 1e-6)
		assert.InDelta(t, 18, res.Closed[0].ProfitPips, 1e-6)
	}

	assert.Equal(t, []string{"42"}, b.closed)
	_, ok := store.Peak("42")
	assert.False(t, ok, "peak cleared after close")
	assert.True(t, store.InCooldown("USD_JPY", t0.Add(4*time.Minute)))
	assert.False(t, store.InCooldown("USD_JPY", t0.Add(5*time.Minute)))
	require.Len(t, n.msgs, 1)
	assert.Contains(t, n.msgs[0], "TRAILING_STOP")
}

func TestRunCycle_TakeProfitBeatsTrailing(t *testing.T) {
	b := &fakeBroker{
		positions: []models.OpenPosition{jpyLong()},
		mids:      map[models.Instrument]float64{"USD_JPY": 150.75},
	}
	store := state.New()
	e := newEngine(b, &fakeNotifier{}, store)

	res, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, models.CloseTakeProfit, res.Closed[0].Reason)
	assert.True(t, store.InCooldown("USD_JPY", t0))
}

func TestRunCycle_ShortSideUsesPositionDirection(t *testing.T) {
	short := models.OpenPosition{TradeID: "7", Instrument: "EUR_USD", Side: models.SideShort, EntryPrice: 1.1000, Units: -1000}
	b := &fakeBroker{
		positions: []models.OpenPosition{short},
		mids:      map[models.Instrument]float64{"EUR_USD": 1.0970},
	}
	store := state.New()
	e := newEngine(b, &fakeNotifier{}, store)

	_, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	peak, ok := store.Peak("7")
	require.True(t, ok)
	assert.InDelta(t, 30, peak, 1e-6)
}

func TestRunCycle_PriceFailureSkipsPosition(t *testing.T) {
	other := models.OpenPosition{TradeID: "43", Instrument: "EUR_USD", Side: models.SideLong, EntryPrice: 1.1000}
	b := &fakeBroker{
		positions: []models.OpenPosition{jpyLong(), other},
		mids:      map[models.Instrument]float64{"EUR_USD": 1.1010},
		midErr:    map[models.Instrument]error{"USD_JPY": errors.Wrap(models.ErrTransientFeed, "timeout")},
	}
	store := state.New()
	e := newEngine(b, &fakeNotifier{}, store)

	res, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, res.Skipped)
	assert.Equal(t, 1, res.Evaluated)
	_, ok := store.Peak("42")
	assert.False(t, ok, "skipped position must not touch state")
	_, ok = store.Peak("43")
	assert.True(t, ok)
}

func TestRunCycle_UsesFreshSharedProfit(t *testing.T) {
	b := &fakeBroker{
		positions: []models.OpenPosition{jpyLong()},
		mids:      map[models.Instrument]float64{},
		midErr:    map[models.Instrument]error{"USD_JPY": models.ErrTransientFeed},
	}
	store := state.New()
	store.SetProfit("USD_JPY", 24, t0.Add(-30*time.Second))
	e := newEngine(b, &fakeNotifier{}, store)

	res, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Evaluated)
	assert.Equal(t, 0, b.midCalls)
	peak, _ := store.Peak("42")
	assert.Equal(t, 24.0, peak)
}

func TestRunCycle_StaleSharedProfitFallsBackToPrice(t *testing.T) {
	b := &fakeBroker{
		positions: []models.OpenPosition{jpyLong()},
		mids:      map[models.Instrument]float64{"USD_JPY": 150.10},
	}
	store := state.New()
	store.SetProfit("USD_JPY", 60, t0.Add(-10*time.Minute))
	e := newEngine(b, &fakeNotifier{}, store)

	_, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, b.midCalls)
	peak, _ := store.Peak("42")
	assert.InDelta(t, 10, peak, 1e-6)
}

func TestRunCycle_CloseFailureKeepsStateAndRetries(t *testing.T) {
	b := &fakeBroker{
		positions: []models.OpenPosition{jpyLong()},
		mids:      map[models.Instrument]float64{"USD_JPY": 150.80},
		closeErr:  errors.Wrap(models.ErrOrderRejected, "MARKET_HALTED"),
	}
	n := &fakeNotifier{}
	store := state.New()
	e := newEngine(b, n, store)

	res, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, res.Failed)
	assert.False(t, store.InCooldown("USD_JPY", t0))
	assert.Empty(t, n.msgs)

	b.closeErr = nil
	res, err = e.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, []string{"42"}, b.closed)
}

func TestRunCycle_PositionFetchFailureSkipsCycle(t *testing.T) {
	b := &fakeBroker{posErr: errors.Wrap(models.ErrTransientFeed, "503"), mids: map[models.Instrument]float64{}}
	e := newEngine(b, &fakeNotifier{}, state.New())

	_, err := e.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrTransientFeed))
	assert.Equal(t, 0, b.midCalls)
}

func TestRunCycle_RefusesOverlap(t *testing.T) {
	b := &fakeBroker{
		mids:    map[models.Instrument]float64{},
		entered: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	e := newEngine(b, &fakeNotifier{}, state.New())

	done := make(chan error, 1)
	go func() {
		_, err := e.RunCycle(context.Background())
		done <- err
	}()
	<-b.entered

	_, err := e.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(b.block)
	require.NoError(t, <-done)
}

func TestRunCycle_CancelledContextDoesNotAbortCycle(t *testing.T) {
	b := &fakeBroker{
		positions: []models.OpenPosition{jpyLong()},
		mids:      map[models.Instrument]float64{"USD_JPY": 150.75},
	}
	e := newEngine(b, &fakeNotifier{}, state.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := e.RunCycle(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Closed, 1)
}

// stallingNotifier висит до отмены ctx, как зависший запрос в Telegram.
type stallingNotifier struct {
	hadDeadline chan bool
}

func (n *stallingNotifier) SendF(ctx context.Context, _ string, _ ...any) error {
	_, ok := ctx.Deadline()
	n.hadDeadline <- ok
	<-ctx.Done()
	return ctx.Err()
}

func TestRunCycle_StalledNotifierDoesNotPinCycle(t *testing.T) {
	b := &fakeBroker{
		positions: []models.OpenPosition{jpyLong()},
		mids:      map[models.Instrument]float64{"USD_JPY": 150.75},
	}
	n := &stallingNotifier{hadDeadline: make(chan bool, 1)}
	cfg := Config{
		Rules:       state.Rules{TakeProfitPips: 70, ActivationThreshold: 20, TrailingGap: 10},
		Cooldown:    5 * time.Minute,
		CallTimeout: 50 * time.Millisecond,
	}
	e := New(cfg, state.New(), b, n, func() time.Time { return t0 })

	done := make(chan Result, 1)
	go func() {
		res, err := e.RunCycle(context.Background())
		assert.NoError(t, err)
		done <- res
	}()

	select {
	case res := <-done:
		assert.Len(t, res.Closed, 1, "close succeeds even if the message does not go out")
	case <-time.After(2 * time.Second):
		t.Fatal("cycle pinned by notifier")
	}
	assert.True(t, <-n.hadDeadline)

	_, err := e.RunCycle(context.Background())
	assert.NotErrorIs(t, err, ErrBusy)
}
