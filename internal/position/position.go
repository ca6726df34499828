// Package position implements the lifecycle of leveraged futures positions:
// opening under capacity constraints, monitoring stop-loss/take-profit/expiry,
// and force-closing on shutdown.
package position

import (
	"context"
	"math"
	"time"

	"github.com/gorkemacar/signalbot/internal/exchange"
	"github.com/gorkemacar/signalbot/internal/logger"
	"github.com/gorkemacar/signalbot/pkg/types"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitNone   ExitReason = ""
	ExitTP     ExitReason = "TP"
	ExitSL     ExitReason = "SL"
	ExitExpire ExitReason = "EXPIRE"
	ExitManual ExitReason = "MANUAL"
)

// Position is one open leveraged exposure. Its only state transition is
// open -> closed; once closed it never reopens and its exit fields never
// change.
type Position struct {
	Symbol     string
	StrategyID string
	Side       types.Side
	Qty        float64
	Entry      float64
	EntryTime  time.Time
	Leverage   int
	StopLoss   float64
	TakeProfit float64
	MaxHolding time.Duration

	Closed     bool
	ExitPrice  float64
	ExitTime   time.Time
	ExitReason ExitReason

	broker exchange.Broker
	log    *logger.Logger
}

// CheckExit evaluates the exit conditions in priority order: take-profit,
// then stop-loss, then max holding time. Exactly one reason is recorded
// even when several conditions hold at once. Returns whether the position
// is closed; the check is idempotent, a closed position reports true
// without touching the exchange again.
func (p *Position) CheckExit(ctx context.Context, now time.Time) (bool, error) {
	if p.Closed {
		return true, nil
	}

	price, err := p.broker.GetMarkPrice(ctx, p.Symbol)
	if err != nil {
		return false, err
	}

	reason := ExitNone
	switch {
	case p.takeProfitHit(price):
		reason = ExitTP
	case p.stopLossHit(price):
		reason = ExitSL
	case p.MaxHolding > 0 && now.Sub(p.EntryTime) >= p.MaxHolding:
		reason = ExitExpire
	default:
		return false, nil
	}

	// Flatten first; the position stays open (and monitored) if the close
	// order fails, so the next sweep retries.
	if err := p.closeMarket(ctx); err != nil {
		return false, err
	}

	p.markClosed(price, now, reason)

	// A resting conditional order on a flat position is harmless on most
	// exchanges, so cancellation failures must not block the transition.
	if err := p.broker.CancelAllOrders(ctx, p.Symbol); err != nil {
		p.log.LogWarning("position", "%s cancel orders after close: %v", p.Symbol, err)
	}

	p.log.Trade("%s %s closed @ %.8f (%s) pnl=%.4f",
		p.Symbol, p.Side, price, reason, p.RealizedPnL())
	return true, nil
}

func (p *Position) takeProfitHit(price float64) bool {
	if p.TakeProfit <= 0 {
		return false
	}
	if p.Side == types.SideLong {
		return AtOrAbove(price, p.TakeProfit)
	}
	return AtOrBelow(price, p.TakeProfit)
}

func (p *Position) stopLossHit(price float64) bool {
	if p.StopLoss <= 0 {
		return false
	}
	if p.Side == types.SideLong {
		return AtOrBelow(price, p.StopLoss)
	}
	return AtOrAbove(price, p.StopLoss)
}

func (p *Position) closeMarket(ctx context.Context) error {
	return p.broker.MarketOrder(ctx, p.Symbol, p.Side.Opposite(), p.Qty)
}

func (p *Position) markClosed(price float64, now time.Time, reason ExitReason) {
	p.Closed = true
	p.ExitPrice = price
	p.ExitTime = now
	p.ExitReason = reason
}

// RealizedPnL returns the realized profit of a closed position in quote
// currency, zero while the position is open.
func (p *Position) RealizedPnL() float64 {
	if !p.Closed {
		return 0
	}
	if p.Side == types.SideLong {
		return (p.ExitPrice - p.Entry) * p.Qty
	}
	return (p.Entry - p.ExitPrice) * p.Qty
}

const roundEpsilon = 1e-9

// priceEpsilon tolerates the ULP-scale drift that reconstructing a tick
// multiple in binary floating point introduces: Ceil(100.6/0.1)*0.1 sits
// one ULP above the float "100.6" parses to, so an exact comparison would
// make the threshold strictly harder to hit than configured.
const priceEpsilon = 1e-9

// AtOrAbove reports whether price has reached threshold from below.
// Shared with the backtester so mark prices and bar ranges trigger the
// same thresholds.
func AtOrAbove(price, threshold float64) bool {
	return price >= threshold-priceEpsilon*math.Abs(threshold)
}

// AtOrBelow reports whether price has reached threshold from above.
func AtOrBelow(price, threshold float64) bool {
	return price <= threshold+priceEpsilon*math.Abs(threshold)
}

// roundDownToStep floors qty to the exchange lot step.
func roundDownToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	return math.Floor(qty/step+roundEpsilon) * step
}

// roundToTick snaps price to the exchange tick size. Rounding direction is
// chosen by the caller so that a threshold never becomes easier to hit
// than configured: away from entry for both SL and TP.
func roundToTick(price, tick float64, up bool) float64 {
	if tick <= 0 {
		return price
	}
	steps := price / tick
	if up {
		return math.Ceil(steps-roundEpsilon) * tick
	}
	return math.Floor(steps+roundEpsilon) * tick
}

// ExitPrices computes the SL/TP trigger prices for an entry. The
// percentage inputs describe account-equity risk, so they are divided by
// leverage before being applied to the price. Thresholds round away from
// the entry: a long's SL floors, its TP ceils; mirrored for shorts.
// Shared with the backtester so both exit models price identically.
func ExitPrices(side types.Side, entry float64, leverage int, slPct, tpPct, tick float64) (sl, tp float64) {
	lev := float64(leverage)
	if lev < 1 {
		lev = 1
	}
	slDist := entry * slPct / lev / 100
	tpDist := entry * tpPct / lev / 100

	if side == types.SideLong {
		sl = roundToTick(entry-slDist, tick, false)
		tp = roundToTick(entry+tpDist, tick, true)
		return sl, tp
	}
	sl = roundToTick(entry+slDist, tick, true)
	tp = roundToTick(entry-tpDist, tick, false)
	return sl, tp
}
