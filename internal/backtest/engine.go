// Package backtest replays a strategy over historical candles with the
// same SL/TP/expiry exit rules the live position core applies.
package backtest

import (
	"fmt"
	"math"

	"github.com/gorkemacar/signalbot/internal/position"
	"github.com/gorkemacar/signalbot/internal/strategy"
	"github.com/gorkemacar/signalbot/pkg/types"
)

// Config bounds a single-strategy replay. One trade at a time, sized to
// CapitalPerTrade at the configured leverage, mirroring the live sizing.
type Config struct {
	InitialBalance  float64
	CapitalPerTrade float64
	Leverage        int
	SLPct           float64
	TPPct           float64
	ExpireBars      int
	TickSize        float64
	QtyStep         float64
}

func (c *Config) applyDefaults() {
	if c.InitialBalance == 0 {
		c.InitialBalance = 1000
	}
	if c.CapitalPerTrade == 0 {
		c.CapitalPerTrade = 50
	}
	if c.Leverage == 0 {
		c.Leverage = 10
	}
	if c.SLPct == 0 {
		c.SLPct = 3
	}
	if c.TPPct == 0 {
		c.TPPct = 6
	}
}

// Trade is one simulated round trip.
type Trade struct {
	Side       types.Side
	EntryIndex int
	ExitIndex  int
	EntryPrice float64
	ExitPrice  float64
	Qty        float64
	ExitReason position.ExitReason
	PnL        float64
}

// Results aggregates a replay: the closed trades, the bar-by-bar equity
// curve, and the derived performance metrics.
type Results struct {
	Trades      []Trade
	EquityCurve []float64

	FinalBalance float64
	TotalReturn  float64
	WinRate      float64
	MaxDrawdown  float64
	ProfitFactor float64
	Sharpe       float64
	Sortino      float64
	Expectancy   float64
}

type openTrade struct {
	side       types.Side
	entryIndex int
	entryPrice float64
	qty        float64
	stopLoss   float64
	takeProfit float64
}

// Run replays the strategy over data. Exits are evaluated against each
// bar's high/low range; when both thresholds fall inside one bar the
// stop-loss wins, the pessimistic reading of an unknowable intrabar path.
func Run(strat strategy.Strategy, data []types.OHLCV, cfg Config) (*Results, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no data to backtest")
	}
	cfg.applyDefaults()

	signals := strat.GenerateSignals(data)
	if len(signals) != len(data) {
		return nil, fmt.Errorf("strategy %s returned %d signals for %d bars",
			strat.Name(), len(signals), len(data))
	}

	res := &Results{EquityCurve: make([]float64, len(data))}
	balance := cfg.InitialBalance
	var open *openTrade

	for i, bar := range data {
		if open != nil {
			if exit, price, reason := open.checkExit(bar, i, cfg.ExpireBars); exit {
				trade := open.close(i, price, reason)
				balance += trade.PnL
				res.Trades = append(res.Trades, trade)
				open = nil
			}
		}

		if open == nil && signals[i] != types.SignalNone {
			open = enter(signals[i].Side(), i, bar.Close, cfg)
		}

		res.EquityCurve[i] = balance
		if open != nil {
			res.EquityCurve[i] = balance + open.unrealized(bar.Close)
		}
	}

	// Liquidate at the final close so every entry produces a trade.
	if open != nil {
		last := len(data) - 1
		trade := open.close(last, data[last].Close, position.ExitManual)
		balance += trade.PnL
		res.Trades = append(res.Trades, trade)
		res.EquityCurve[last] = balance
	}

	res.FinalBalance = balance
	res.computeMetrics(cfg.InitialBalance)
	return res, nil
}

func enter(side types.Side, index int, price float64, cfg Config) *openTrade {
	qty := cfg.CapitalPerTrade * float64(cfg.Leverage) / price
	if cfg.QtyStep > 0 {
		qty = math.Floor(qty/cfg.QtyStep) * cfg.QtyStep
	}
	if qty <= 0 {
		return nil
	}
	sl, tp := position.ExitPrices(side, price, cfg.Leverage, cfg.SLPct, cfg.TPPct, cfg.TickSize)
	return &openTrade{
		side:       side,
		entryIndex: index,
		entryPrice: price,
		qty:        qty,
		stopLoss:   sl,
		takeProfit: tp,
	}
}

func (o *openTrade) checkExit(bar types.OHLCV, index, expireBars int) (bool, float64, position.ExitReason) {
	if o.side == types.SideLong {
		if position.AtOrBelow(bar.Low, o.stopLoss) {
			return true, o.stopLoss, position.ExitSL
		}
		if position.AtOrAbove(bar.High, o.takeProfit) {
			return true, o.takeProfit, position.ExitTP
		}
	} else {
		if position.AtOrAbove(bar.High, o.stopLoss) {
			return true, o.stopLoss, position.ExitSL
		}
		if position.AtOrBelow(bar.Low, o.takeProfit) {
			return true, o.takeProfit, position.ExitTP
		}
	}
	if expireBars > 0 && index-o.entryIndex >= expireBars {
		return true, bar.Close, position.ExitExpire
	}
	return false, 0, position.ExitNone
}

func (o *openTrade) unrealized(price float64) float64 {
	if o.side == types.SideLong {
		return (price - o.entryPrice) * o.qty
	}
	return (o.entryPrice - price) * o.qty
}

func (o *openTrade) close(index int, price float64, reason position.ExitReason) Trade {
	pnl := (price - o.entryPrice) * o.qty
	if o.side == types.SideShort {
		pnl = -pnl
	}
	return Trade{
		Side:       o.side,
		EntryIndex: o.entryIndex,
		ExitIndex:  index,
		EntryPrice: o.entryPrice,
		ExitPrice:  price,
		Qty:        o.qty,
		ExitReason: reason,
		PnL:        pnl,
	}
}
