package position

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorkemacar/signalbot/pkg/types"
)

type recordedTrades struct {
	positions []*Position
	err       error
}

func (r *recordedTrades) Record(p *Position) error {
	if r.err != nil {
		return r.err
	}
	r.positions = append(r.positions, p)
	return nil
}

func openReq(symbol, strategy string) OpenRequest {
	return OpenRequest{
		Symbol:     symbol,
		Side:       types.SideLong,
		StrategyID: strategy,
		Leverage:   10,
		SLPct:      3,
		TPPct:      6,
		MaxHolding: 4 * time.Hour,
	}
}

func TestOpenPositionSizesToLotStep(t *testing.T) {
	broker := newFakeBroker()
	broker.mark["BTCUSDT"] = 100
	m := NewManager(broker, testLogger(t), ManagerConfig{CapitalPerTrade: 50, MaxConcurrent: 5}, nil)

	opened, err := m.OpenPosition(context.Background(), openReq("BTCUSDT", "rsi_threshold"))
	require.NoError(t, err)
	require.True(t, opened)

	// capital 50 * 10x / 100 = 5.0, already on the 0.001 step.
	require.Len(t, broker.orders, 1)
	assert.InDelta(t, 5.0, broker.orders[0].Qty, 1e-9)
	assert.Equal(t, types.SideLong, broker.orders[0].Side)
	assert.Equal(t, 1, broker.marginCalls)
	assert.Equal(t, 1, broker.leverageCalls)
	assert.InDelta(t, 99.7, broker.stops["BTCUSDT"], 1e-9)
	assert.InDelta(t, 100.6, broker.takes["BTCUSDT"], 1e-9)
	assert.Equal(t, 1, m.OpenCount())
	assert.True(t, m.Has("BTCUSDT", "rsi_threshold"))
}

func TestOpenPositionFloorsFractionalQty(t *testing.T) {
	broker := newFakeBroker()
	broker.mark["BTCUSDT"] = 43211
	m := NewManager(broker, testLogger(t), ManagerConfig{CapitalPerTrade: 100, MaxConcurrent: 5}, nil)

	opened, err := m.OpenPosition(context.Background(), openReq("BTCUSDT", "rsi_threshold"))
	require.NoError(t, err)
	require.True(t, opened)

	// 100*10/43211 = 0.023142..., floored to 0.023.
	require.Len(t, broker.orders, 1)
	assert.InDelta(t, 0.023, broker.orders[0].Qty, 1e-9)
}

func TestOpenPositionDeclinesDust(t *testing.T) {
	broker := newFakeBroker()
	broker.mark["BTCUSDT"] = 100
	broker.inst.MinQty = 10
	m := NewManager(broker, testLogger(t), ManagerConfig{CapitalPerTrade: 50, MaxConcurrent: 5}, nil)

	opened, err := m.OpenPosition(context.Background(), openReq("BTCUSDT", "rsi_threshold"))
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Empty(t, broker.orders)
	assert.Zero(t, m.OpenCount())
}

func TestOpenPositionDuplicateKeyDeclined(t *testing.T) {
	broker := newFakeBroker()
	broker.mark["BTCUSDT"] = 100
	m := NewManager(broker, testLogger(t), ManagerConfig{CapitalPerTrade: 50, MaxConcurrent: 5}, nil)

	opened, err := m.OpenPosition(context.Background(), openReq("BTCUSDT", "rsi_threshold"))
	require.NoError(t, err)
	require.True(t, opened)

	opened, err = m.OpenPosition(context.Background(), openReq("BTCUSDT", "rsi_threshold"))
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Len(t, broker.orders, 1)

	// Same symbol under a different strategy is a distinct key.
	opened, err = m.OpenPosition(context.Background(), openReq("BTCUSDT", "ema_crossover"))
	require.NoError(t, err)
	assert.True(t, opened)
	assert.Equal(t, 2, m.OpenCount())
}

func TestOpenPositionConcurrencyCap(t *testing.T) {
	broker := newFakeBroker()
	broker.mark["BTCUSDT"] = 100
	broker.mark["ETHUSDT"] = 100
	broker.mark["SOLUSDT"] = 100
	m := NewManager(broker, testLogger(t), ManagerConfig{CapitalPerTrade: 50, MaxConcurrent: 2}, nil)

	for _, sym := range []string{"BTCUSDT", "ETHUSDT"} {
		opened, err := m.OpenPosition(context.Background(), openReq(sym, "rsi_threshold"))
		require.NoError(t, err)
		require.True(t, opened)
	}

	opened, err := m.OpenPosition(context.Background(), openReq("SOLUSDT", "rsi_threshold"))
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Equal(t, 2, m.OpenCount())
}

func TestOpenPositionEntryFailureLeavesNoRecord(t *testing.T) {
	broker := newFakeBroker()
	broker.mark["BTCUSDT"] = 100
	broker.orderErr = errors.New("insufficient balance")
	m := NewManager(broker, testLogger(t), ManagerConfig{CapitalPerTrade: 50, MaxConcurrent: 5}, nil)

	opened, err := m.OpenPosition(context.Background(), openReq("BTCUSDT", "rsi_threshold"))
	require.Error(t, err)
	assert.False(t, opened)
	assert.Zero(t, m.OpenCount())
	assert.Empty(t, broker.stops)
}

func TestOpenPositionLegFailureStillOpens(t *testing.T) {
	broker := newFakeBroker()
	broker.mark["BTCUSDT"] = 100
	broker.stopErr = errors.New("trigger price rejected")
	m := NewManager(broker, testLogger(t), ManagerConfig{CapitalPerTrade: 50, MaxConcurrent: 5}, nil)

	opened, err := m.OpenPosition(context.Background(), openReq("BTCUSDT", "rsi_threshold"))
	require.NoError(t, err)
	assert.True(t, opened)
	assert.Equal(t, 1, m.OpenCount())
	// Software monitoring still carries the SL threshold.
	assert.InDelta(t, 99.7, m.open["BTCUSDT/rsi_threshold"].StopLoss, 1e-9)
}

func TestUpdateAllMovesClosedToHistory(t *testing.T) {
	broker := newFakeBroker()
	broker.mark["BTCUSDT"] = 100
	broker.mark["ETHUSDT"] = 100
	rec := &recordedTrades{}
	m := NewManager(broker, testLogger(t), ManagerConfig{CapitalPerTrade: 50, MaxConcurrent: 5}, rec)

	for _, sym := range []string{"BTCUSDT", "ETHUSDT"} {
		opened, err := m.OpenPosition(context.Background(), openReq(sym, "rsi_threshold"))
		require.NoError(t, err)
		require.True(t, opened)
	}

	// Only BTC reaches its take-profit.
	broker.mark["BTCUSDT"] = 100.6
	m.UpdateAll(context.Background())

	assert.Equal(t, 1, m.OpenCount())
	require.Len(t, m.History(), 1)
	assert.Equal(t, "BTCUSDT", m.History()[0].Symbol)
	assert.Equal(t, ExitTP, m.History()[0].ExitReason)
	require.Len(t, rec.positions, 1)
	assert.Equal(t, "BTCUSDT", rec.positions[0].Symbol)
}

func TestUpdateAllIsolatesFailures(t *testing.T) {
	broker := newFakeBroker()
	broker.mark["BTCUSDT"] = 100
	m := NewManager(broker, testLogger(t), ManagerConfig{CapitalPerTrade: 50, MaxConcurrent: 5}, nil)

	opened, err := m.OpenPosition(context.Background(), openReq("BTCUSDT", "rsi_threshold"))
	require.NoError(t, err)
	require.True(t, opened)

	broker.markErr = errors.New("timeout")
	m.UpdateAll(context.Background())
	assert.Equal(t, 1, m.OpenCount(), "position survives a failed sweep")

	broker.markErr = nil
	broker.mark["BTCUSDT"] = 100.6
	m.UpdateAll(context.Background())
	assert.Zero(t, m.OpenCount())
}

func TestForceCloseAll(t *testing.T) {
	broker := newFakeBroker()
	broker.mark["BTCUSDT"] = 100
	broker.mark["ETHUSDT"] = 100
	rec := &recordedTrades{}
	m := NewManager(broker, testLogger(t), ManagerConfig{CapitalPerTrade: 50, MaxConcurrent: 5}, rec)

	for _, sym := range []string{"BTCUSDT", "ETHUSDT"} {
		opened, err := m.OpenPosition(context.Background(), openReq(sym, "rsi_threshold"))
		require.NoError(t, err)
		require.True(t, opened)
	}

	m.ForceCloseAll(context.Background())

	assert.Zero(t, m.OpenCount())
	require.Len(t, m.History(), 2)
	for _, pos := range m.History() {
		assert.Equal(t, ExitManual, pos.ExitReason)
		assert.True(t, pos.Closed)
	}
	assert.Len(t, rec.positions, 2)
	// Entry orders plus one flattening order each.
	assert.Len(t, broker.orders, 4)
}

func TestForceCloseAllSurvivesOrderFailures(t *testing.T) {
	broker := newFakeBroker()
	broker.mark["BTCUSDT"] = 100
	m := NewManager(broker, testLogger(t), ManagerConfig{CapitalPerTrade: 50, MaxConcurrent: 5}, nil)

	opened, err := m.OpenPosition(context.Background(), openReq("BTCUSDT", "rsi_threshold"))
	require.NoError(t, err)
	require.True(t, opened)

	broker.orderErr = errors.New("exchange down")
	m.ForceCloseAll(context.Background())

	assert.Zero(t, m.OpenCount())
	require.Len(t, m.History(), 1)
	assert.Equal(t, ExitManual, m.History()[0].ExitReason)
}
