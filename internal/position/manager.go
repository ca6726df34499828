package position

import (
	"context"
	"fmt"
	"time"

	"github.com/gorkemacar/signalbot/internal/exchange"
	"github.com/gorkemacar/signalbot/internal/logger"
	"github.com/gorkemacar/signalbot/internal/monitoring"
	"github.com/gorkemacar/signalbot/pkg/types"
)

// Recorder receives each position once, at close time.
type Recorder interface {
	Record(p *Position) error
}

// OpenRequest describes a position the manager should attempt to open.
// Capital left at zero falls back to the manager's default.
type OpenRequest struct {
	Symbol     string
	Side       types.Side
	StrategyID string
	Capital    float64
	Leverage   int
	SLPct      float64
	TPPct      float64
	MaxHolding time.Duration
}

// ManagerConfig sizes and bounds the manager.
type ManagerConfig struct {
	CapitalPerTrade float64
	MaxConcurrent   int
}

// Manager owns every live position. At most one position may exist per
// (symbol, strategy) pair and at most MaxConcurrent in total; requests
// beyond either bound are declined without touching the exchange.
//
// The manager is driven from the engine's single event loop and is not
// safe for concurrent use.
type Manager struct {
	broker   exchange.Broker
	log      *logger.Logger
	recorder Recorder

	capital float64
	maxOpen int

	open    map[string]*Position
	history []*Position
}

func NewManager(broker exchange.Broker, log *logger.Logger, cfg ManagerConfig, recorder Recorder) *Manager {
	return &Manager{
		broker:   broker,
		log:      log,
		recorder: recorder,
		capital:  cfg.CapitalPerTrade,
		maxOpen:  cfg.MaxConcurrent,
		open:     make(map[string]*Position),
	}
}

func positionKey(symbol, strategyID string) string {
	return symbol + "/" + strategyID
}

// OpenPosition opens a new position for the request, placing the entry
// market order followed by best-effort SL and TP legs. It returns false
// without error when the request is declined (duplicate key, concurrency
// cap, or dust quantity). An entry order failure leaves no record behind;
// a failed protective leg degrades the position to software-monitored
// exits only and is logged as a warning.
func (m *Manager) OpenPosition(ctx context.Context, req OpenRequest) (bool, error) {
	key := positionKey(req.Symbol, req.StrategyID)
	if _, exists := m.open[key]; exists {
		return false, nil
	}
	if m.maxOpen > 0 && len(m.open) >= m.maxOpen {
		m.log.Debug("%s declined: %d positions open", key, len(m.open))
		return false, nil
	}

	mark, err := m.broker.GetMarkPrice(ctx, req.Symbol)
	if err != nil {
		return false, fmt.Errorf("mark price for %s: %w", req.Symbol, err)
	}
	inst, err := m.broker.GetInstrument(ctx, req.Symbol)
	if err != nil {
		return false, fmt.Errorf("instrument for %s: %w", req.Symbol, err)
	}

	capital := m.capital
	if req.Capital > 0 {
		capital = req.Capital
	}
	qty := roundDownToStep(capital*float64(req.Leverage)/mark, inst.QtyStep)
	if qty <= 0 || qty < inst.MinQty {
		m.log.LogWarning("position", "%s declined: qty %.8f below minimum %.8f",
			key, qty, inst.MinQty)
		return false, nil
	}

	if err := m.broker.EnsureIsolatedMargin(ctx, req.Symbol); err != nil {
		return false, fmt.Errorf("isolated margin for %s: %w", req.Symbol, err)
	}
	if err := m.broker.SetLeverage(ctx, req.Symbol, req.Leverage); err != nil {
		return false, fmt.Errorf("leverage for %s: %w", req.Symbol, err)
	}

	if err := m.broker.MarketOrder(ctx, req.Symbol, req.Side, qty); err != nil {
		return false, fmt.Errorf("entry order for %s: %w", key, err)
	}

	sl, tp := ExitPrices(req.Side, mark, req.Leverage, req.SLPct, req.TPPct, inst.TickSize)

	closing := req.Side.Opposite()
	if err := m.broker.PlaceStopMarket(ctx, req.Symbol, closing, sl); err != nil {
		m.log.LogWarning("position", "%s stop-loss leg failed, software exit only: %v", key, err)
	}
	if err := m.broker.PlaceTakeProfit(ctx, req.Symbol, closing, tp); err != nil {
		m.log.LogWarning("position", "%s take-profit leg failed, software exit only: %v", key, err)
	}

	pos := &Position{
		Symbol:     req.Symbol,
		StrategyID: req.StrategyID,
		Side:       req.Side,
		Qty:        qty,
		Entry:      mark,
		EntryTime:  time.Now(),
		Leverage:   req.Leverage,
		StopLoss:   sl,
		TakeProfit: tp,
		MaxHolding: req.MaxHolding,
		broker:     m.broker,
		log:        m.log,
	}
	m.open[key] = pos
	monitoring.SetOpenPositions(len(m.open))

	m.log.Trade("%s %s opened qty=%.8f entry=%.8f sl=%.8f tp=%.8f lev=%dx",
		req.Symbol, req.Side, qty, mark, sl, tp, req.Leverage)
	return true, nil
}

// UpdateAll sweeps every open position through CheckExit. One position's
// failure never blocks the rest; errors are logged and the position is
// retried on the next sweep.
func (m *Manager) UpdateAll(ctx context.Context) {
	now := time.Now()
	for key, pos := range m.open {
		closed, err := pos.CheckExit(ctx, now)
		if err != nil {
			m.log.Error("%s exit check: %v", key, err)
			monitoring.RecordError("exit_check")
			continue
		}
		if closed {
			m.retire(key, pos)
		}
	}
}

// ForceCloseAll unconditionally flattens every open position, tagging each
// with a manual exit. Close failures are logged but every position still
// moves to history so the session record is complete.
func (m *Manager) ForceCloseAll(ctx context.Context) {
	for key, pos := range m.open {
		price, err := m.broker.GetMarkPrice(ctx, pos.Symbol)
		if err != nil {
			price = pos.Entry
		}
		if err := pos.closeMarket(ctx); err != nil {
			m.log.Error("%s force close: %v", key, err)
			monitoring.RecordError("force_close")
		}
		if err := m.broker.CancelAllOrders(ctx, pos.Symbol); err != nil {
			m.log.LogWarning("position", "%s cancel orders: %v", key, err)
		}
		pos.markClosed(price, time.Now(), ExitManual)
		m.log.Trade("%s %s force closed @ %.8f pnl=%.4f",
			pos.Symbol, pos.Side, price, pos.RealizedPnL())
		m.retire(key, pos)
	}
}

func (m *Manager) retire(key string, pos *Position) {
	delete(m.open, key)
	m.history = append(m.history, pos)
	monitoring.SetOpenPositions(len(m.open))
	monitoring.RecordTrade(pos.Symbol, string(pos.ExitReason))
	if m.recorder != nil {
		if err := m.recorder.Record(pos); err != nil {
			m.log.LogWarning("position", "%s trade record: %v", key, err)
		}
	}
}

// OpenCount reports the number of live positions.
func (m *Manager) OpenCount() int { return len(m.open) }

// Has reports whether a position is open for the pair.
func (m *Manager) Has(symbol, strategyID string) bool {
	_, ok := m.open[positionKey(symbol, strategyID)]
	return ok
}

// History returns every closed position in close order.
func (m *Manager) History() []*Position { return m.history }
