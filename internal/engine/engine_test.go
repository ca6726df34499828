package engine

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorkemacar/signalbot/internal/config"
	"github.com/gorkemacar/signalbot/internal/exchange"
	"github.com/gorkemacar/signalbot/internal/exchange/bybit"
	"github.com/gorkemacar/signalbot/internal/logger"
	"github.com/gorkemacar/signalbot/internal/market"
	"github.com/gorkemacar/signalbot/internal/position"
	"github.com/gorkemacar/signalbot/internal/safety"
	"github.com/gorkemacar/signalbot/internal/strategy"
	"github.com/gorkemacar/signalbot/internal/stream"
	"github.com/gorkemacar/signalbot/pkg/types"
)

// scriptedBroker serves a declining kline history and a scripted sequence
// of mark prices, so the test controls exactly when the take-profit hits.
type scriptedBroker struct {
	mu         sync.Mutex
	markPrices []float64
	markCalls  int
	orders     []string
	orderErr   error
}

func (b *scriptedBroker) GetMarkPrice(context.Context, string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	price := b.markPrices[len(b.markPrices)-1]
	if b.markCalls < len(b.markPrices) {
		price = b.markPrices[b.markCalls]
	}
	b.markCalls++
	return price, nil
}

func (b *scriptedBroker) GetKlines(_ context.Context, symbol, timeframe string, limit int) ([]types.Bar, error) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, limit)
	for i := range bars {
		c := 200 - float64(i)*0.2
		bars[i] = types.Bar{
			Symbol:    symbol,
			Timeframe: timeframe,
			OpenTime:  base.Add(time.Duration(i) * time.Minute),
			CloseTime: base.Add(time.Duration(i+1) * time.Minute),
			Open:      c + 0.2,
			High:      c + 0.3,
			Low:       c - 0.1,
			Close:     c,
			Volume:    1000,
			Closed:    true,
		}
	}
	return bars, nil
}

func (b *scriptedBroker) GetInstrument(_ context.Context, symbol string) (*exchange.Instrument, error) {
	return &exchange.Instrument{Symbol: symbol, TickSize: 0.1, QtyStep: 0.001, MinQty: 0.001}, nil
}

func (b *scriptedBroker) ListSymbols(context.Context, string) ([]string, error) { return nil, nil }

func (b *scriptedBroker) MarketOrder(_ context.Context, symbol string, side types.Side, _ float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.orderErr != nil {
		return b.orderErr
	}
	b.orders = append(b.orders, symbol+"/"+side.String())
	return nil
}

func (b *scriptedBroker) PositionAmt(context.Context, string) (float64, error) { return 0, nil }
func (b *scriptedBroker) ClosePosition(context.Context, string) error          { return nil }
func (b *scriptedBroker) CancelAllOrders(context.Context, string) error        { return nil }

func (b *scriptedBroker) PlaceStopMarket(context.Context, string, types.Side, float64) error {
	return nil
}

func (b *scriptedBroker) PlaceTakeProfit(context.Context, string, types.Side, float64) error {
	return nil
}

func (b *scriptedBroker) SetLeverage(context.Context, string, int) error     { return nil }
func (b *scriptedBroker) EnsureIsolatedMargin(context.Context, string) error { return nil }
func (b *scriptedBroker) Balance(context.Context, string) (float64, error)   { return 0, nil }

type nopStreamer struct {
	stopped bool
}

func (s *nopStreamer) Start(context.Context) error { return nil }
func (s *nopStreamer) Stop()                       { s.stopped = true }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })
	log, err := logger.NewLogger("test")
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

func liveBar(i int, close float64) types.Bar {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Add(250 * time.Minute)
	return types.Bar{
		Symbol:    "BTCUSDT",
		Timeframe: "1m",
		OpenTime:  base.Add(time.Duration(i) * time.Minute),
		CloseTime: base.Add(time.Duration(i+1) * time.Minute),
		Open:      close + 0.2,
		High:      close + 0.3,
		Low:       close - 0.1,
		Close:     close,
		Volume:    1000,
		Closed:    true,
	}
}

// Full live cycle: preload history, receive a bar that fires a long
// signal, open a sized position, and close it when the mark price reaches
// the take-profit on a later sweep.
func TestEngineOpensAndClosesOnTakeProfit(t *testing.T) {
	log := testLogger(t)
	broker := &scriptedBroker{
		// open sizing, first sweep (hold), second sweep (TP hit)
		markPrices: []float64{100, 100, 100.6},
	}

	store := market.NewBarStore(500)
	queue := stream.NewQueue(16)
	manager := position.NewManager(broker, log,
		position.ManagerConfig{CapitalPerTrade: 50, MaxConcurrent: 5}, nil)
	preloader := stream.NewPreloader(broker, store, log, safety.NewManager(), 10, 0)

	risk := config.RiskConfig{
		Leverage: 10, SLPct: 3, TPPct: 6, CapitalPerTrade: 50, MaxConcurrent: 5,
	}
	streamer := &nopStreamer{}
	eng, err := New(Options{
		Broker:      broker,
		Store:       store,
		Queue:       queue,
		Preloader:   preloader,
		Manager:     manager,
		Log:         log,
		Coins:       []string{"BTCUSDT"},
		PreloadBars: 250,
	}, []config.StrategyConfig{
		{Name: "rsi_threshold", Timeframe: "1m", Risk: &risk},
	}, strategy.NewRegistry())
	require.NoError(t, err)
	eng.SetStreamer(streamer)

	// The declining history makes RSI deeply oversold, so the first live
	// bar fires a long; the second live bar triggers the TP sweep.
	queue.Push(stream.Event{Bar: liveBar(0, 149.8)})
	queue.Push(stream.Event{Bar: liveBar(1, 149.6)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	require.Eventually(t, func() bool {
		broker.mu.Lock()
		defer broker.mu.Unlock()
		return len(broker.orders) >= 2
	}, 5*time.Second, 10*time.Millisecond, "expected entry and closing orders")

	cancel()
	require.NoError(t, <-done)

	assert.True(t, streamer.stopped)
	// 250 preloaded plus both live bars.
	assert.Equal(t, 252, store.Len("BTCUSDT", "1m"))

	require.Len(t, manager.History(), 1)
	closed := manager.History()[0]
	assert.Equal(t, "BTCUSDT", closed.Symbol)
	assert.Equal(t, types.SideLong, closed.Side)
	assert.Equal(t, position.ExitTP, closed.ExitReason)
	// capital 50 * 10x at mark 100, on the 0.001 lot step.
	assert.InDelta(t, 5.0, closed.Qty, 1e-9)
	assert.InDelta(t, 100.6, closed.TakeProfit, 1e-9)
	assert.InDelta(t, 99.7, closed.StopLoss, 1e-9)

	broker.mu.Lock()
	defer broker.mu.Unlock()
	assert.Equal(t, []string{"BTCUSDT/LONG", "BTCUSDT/SHORT"}, broker.orders)
}

// An entry order rejected for lack of margin must not kill the loop: no
// position is recorded and later bars keep flowing.
func TestEngineSurvivesInsufficientBalance(t *testing.T) {
	log := testLogger(t)
	broker := &scriptedBroker{
		markPrices: []float64{100},
		orderErr:   &bybit.APIError{Code: 110007, Message: "ab not enough for new order"},
	}

	store := market.NewBarStore(500)
	queue := stream.NewQueue(16)
	manager := position.NewManager(broker, log,
		position.ManagerConfig{CapitalPerTrade: 50, MaxConcurrent: 5}, nil)
	preloader := stream.NewPreloader(broker, store, log, safety.NewManager(), 10, 0)

	risk := config.RiskConfig{
		Leverage: 10, SLPct: 3, TPPct: 6, CapitalPerTrade: 50, MaxConcurrent: 5,
	}
	eng, err := New(Options{
		Broker:      broker,
		Store:       store,
		Queue:       queue,
		Preloader:   preloader,
		Manager:     manager,
		Log:         log,
		Coins:       []string{"BTCUSDT"},
		PreloadBars: 250,
	}, []config.StrategyConfig{
		{Name: "rsi_threshold", Timeframe: "1m", Risk: &risk},
	}, strategy.NewRegistry())
	require.NoError(t, err)
	eng.SetStreamer(&nopStreamer{})

	// Both bars fire long signals against the oversold history; both
	// entries are rejected.
	queue.Push(stream.Event{Bar: liveBar(0, 149.8)})
	queue.Push(stream.Event{Bar: liveBar(1, 149.6)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	// Sizing fetches the mark price once per rejected entry.
	require.Eventually(t, func() bool {
		broker.mu.Lock()
		defer broker.mu.Unlock()
		return broker.markCalls >= 2
	}, 5*time.Second, 10*time.Millisecond, "expected both live bars processed")

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 252, store.Len("BTCUSDT", "1m"))
	assert.Zero(t, manager.OpenCount())
	assert.Empty(t, manager.History())
	broker.mu.Lock()
	defer broker.mu.Unlock()
	assert.Empty(t, broker.orders)
}

// Symbol resolution failure is fatal before any stream starts.
func TestEngineFailsWithoutSymbols(t *testing.T) {
	log := testLogger(t)
	broker := &scriptedBroker{markPrices: []float64{100}}
	store := market.NewBarStore(500)
	queue := stream.NewQueue(16)
	manager := position.NewManager(broker, log,
		position.ManagerConfig{CapitalPerTrade: 50, MaxConcurrent: 5}, nil)
	preloader := stream.NewPreloader(broker, store, log, safety.NewManager(), 10, 0)

	risk := config.RiskConfig{Leverage: 10, SLPct: 3, TPPct: 6, CapitalPerTrade: 50, MaxConcurrent: 5}
	eng, err := New(Options{
		Broker:      broker,
		Store:       store,
		Queue:       queue,
		Preloader:   preloader,
		Manager:     manager,
		Log:         log,
		Coins:       nil,
		PreloadBars: 10,
	}, []config.StrategyConfig{
		{Name: "rsi_threshold", Timeframe: "1m", Risk: &risk},
	}, strategy.NewRegistry())
	require.NoError(t, err)
	eng.SetStreamer(&nopStreamer{})

	assert.Error(t, eng.Run(context.Background()))
}
