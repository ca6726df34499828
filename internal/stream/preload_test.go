package stream

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorkemacar/signalbot/internal/exchange"
	"github.com/gorkemacar/signalbot/internal/logger"
	"github.com/gorkemacar/signalbot/internal/market"
	"github.com/gorkemacar/signalbot/internal/safety"
	"github.com/gorkemacar/signalbot/pkg/types"
)

// stubBroker implements just enough of exchange.Broker for preload tests.
type stubBroker struct {
	exchange.Broker

	symbols    []string
	listErr    error
	klineFails map[string]bool
	klineCalls int
}

func (s *stubBroker) ListSymbols(ctx context.Context, quote string) ([]string, error) {
	return s.symbols, s.listErr
}

func (s *stubBroker) GetKlines(ctx context.Context, symbol, timeframe string, limit int) ([]types.Bar, error) {
	s.klineCalls++
	if s.klineFails[symbol] {
		return nil, errors.New("exchange unavailable")
	}

	bars := make([]types.Bar, limit)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = types.Bar{
			Symbol:    symbol,
			Timeframe: timeframe,
			OpenTime:  base.Add(time.Duration(i) * time.Minute),
			CloseTime: base.Add(time.Duration(i+1) * time.Minute),
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100,
			Volume:    1,
			Closed:    true,
		}
	}
	return bars, nil
}

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

func TestResolveSymbols_Wildcard(t *testing.T) {
	broker := &stubBroker{symbols: []string{"BTCUSDT", "ETHUSDT"}}

	symbols, err := ResolveSymbols(context.Background(), broker, []string{WildcardAllUSDT})
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, symbols)
}

func TestResolveSymbols_WildcardFailure(t *testing.T) {
	broker := &stubBroker{listErr: errors.New("listing down")}

	_, err := ResolveSymbols(context.Background(), broker, []string{WildcardAllUSDT})
	assert.Error(t, err)
}

func TestResolveSymbols_ExplicitList(t *testing.T) {
	symbols, err := ResolveSymbols(context.Background(), &stubBroker{}, []string{"BTC/USDT", "ethusdt", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, symbols)
}

func TestPreloader_BackfillsStore(t *testing.T) {
	broker := &stubBroker{}
	store := market.NewBarStore(600)
	log := testLogger(t)

	p := NewPreloader(broker, store, log, safety.NewManager(), 10, time.Millisecond)
	subs := []Subscription{
		{Symbol: "BTCUSDT", Timeframe: "1m"},
		{Symbol: "ETHUSDT", Timeframe: "1m"},
	}
	require.NoError(t, p.Preload(context.Background(), subs, 250))

	assert.Equal(t, 250, store.Len("BTCUSDT", "1m"))
	assert.Equal(t, 250, store.Len("ETHUSDT", "1m"))
}

func TestPreloader_SkipsFailedSymbols(t *testing.T) {
	broker := &stubBroker{klineFails: map[string]bool{"BTCUSDT": true}}
	store := market.NewBarStore(600)
	log := testLogger(t)

	p := NewPreloader(broker, store, log, safety.NewManager(), 10, time.Millisecond)
	subs := []Subscription{
		{Symbol: "BTCUSDT", Timeframe: "1m"},
		{Symbol: "ETHUSDT", Timeframe: "1m"},
	}
	require.NoError(t, p.Preload(context.Background(), subs, 50))

	assert.Equal(t, 0, store.Len("BTCUSDT", "1m"))
	assert.Equal(t, 50, store.Len("ETHUSDT", "1m"))
	assert.Equal(t, 2, broker.klineCalls, "failure must not abort the preload")
}
