package exchange

import (
	"context"

	"github.com/gorkemacar/signalbot/internal/safety"
	"github.com/gorkemacar/signalbot/pkg/types"
)

// ProtectedBroker decorates a Broker with rate limiting and circuit breaker
// protection. Trading calls and market-data calls go through separate
// breakers so a run of order rejections does not blind the price feed.
type ProtectedBroker struct {
	inner Broker

	tradingRL *safety.RateLimiter
	marketRL  *safety.RateLimiter
	tradingCB *safety.CircuitBreaker
	marketCB  *safety.CircuitBreaker
}

// NewProtectedBroker wraps broker with limiters and breakers from the
// shared manager.
func NewProtectedBroker(broker Broker, limiters *safety.Manager) *ProtectedBroker {
	return &ProtectedBroker{
		inner:     broker,
		tradingRL: limiters.GetOrCreate("trading", 10, 10),
		marketRL:  limiters.GetOrCreate("market_data", 50, 50),
		tradingCB: safety.NewCircuitBreaker("trading", safety.CircuitBreakerConfig{
			FailureThreshold: 3,
		}),
		marketCB: safety.NewCircuitBreaker("market_data", safety.CircuitBreakerConfig{
			FailureThreshold: 5,
		}),
	}
}

func (p *ProtectedBroker) market(ctx context.Context, fn func() error) error {
	if err := p.marketRL.Wait(ctx); err != nil {
		return err
	}
	return p.marketCB.Call(fn)
}

func (p *ProtectedBroker) trading(ctx context.Context, fn func() error) error {
	if err := p.tradingRL.Wait(ctx); err != nil {
		return err
	}
	return p.tradingCB.Call(fn)
}

func (p *ProtectedBroker) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	var price float64
	err := p.market(ctx, func() error {
		var err error
		price, err = p.inner.GetMarkPrice(ctx, symbol)
		return err
	})
	return price, err
}

func (p *ProtectedBroker) GetKlines(ctx context.Context, symbol, timeframe string, limit int) ([]types.Bar, error) {
	var bars []types.Bar
	err := p.market(ctx, func() error {
		var err error
		bars, err = p.inner.GetKlines(ctx, symbol, timeframe, limit)
		return err
	})
	return bars, err
}

func (p *ProtectedBroker) GetInstrument(ctx context.Context, symbol string) (*Instrument, error) {
	var inst *Instrument
	err := p.market(ctx, func() error {
		var err error
		inst, err = p.inner.GetInstrument(ctx, symbol)
		return err
	})
	return inst, err
}

func (p *ProtectedBroker) ListSymbols(ctx context.Context, quote string) ([]string, error) {
	var symbols []string
	err := p.market(ctx, func() error {
		var err error
		symbols, err = p.inner.ListSymbols(ctx, quote)
		return err
	})
	return symbols, err
}

func (p *ProtectedBroker) MarketOrder(ctx context.Context, symbol string, side types.Side, qty float64) error {
	return p.trading(ctx, func() error {
		return p.inner.MarketOrder(ctx, symbol, side, qty)
	})
}

func (p *ProtectedBroker) PositionAmt(ctx context.Context, symbol string) (float64, error) {
	var amt float64
	err := p.market(ctx, func() error {
		var err error
		amt, err = p.inner.PositionAmt(ctx, symbol)
		return err
	})
	return amt, err
}

func (p *ProtectedBroker) ClosePosition(ctx context.Context, symbol string) error {
	return p.trading(ctx, func() error {
		return p.inner.ClosePosition(ctx, symbol)
	})
}

func (p *ProtectedBroker) CancelAllOrders(ctx context.Context, symbol string) error {
	return p.trading(ctx, func() error {
		return p.inner.CancelAllOrders(ctx, symbol)
	})
}

func (p *ProtectedBroker) PlaceStopMarket(ctx context.Context, symbol string, side types.Side, stopPrice float64) error {
	return p.trading(ctx, func() error {
		return p.inner.PlaceStopMarket(ctx, symbol, side, stopPrice)
	})
}

func (p *ProtectedBroker) PlaceTakeProfit(ctx context.Context, symbol string, side types.Side, price float64) error {
	return p.trading(ctx, func() error {
		return p.inner.PlaceTakeProfit(ctx, symbol, side, price)
	})
}

func (p *ProtectedBroker) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return p.trading(ctx, func() error {
		return p.inner.SetLeverage(ctx, symbol, leverage)
	})
}

func (p *ProtectedBroker) EnsureIsolatedMargin(ctx context.Context, symbol string) error {
	return p.trading(ctx, func() error {
		return p.inner.EnsureIsolatedMargin(ctx, symbol)
	})
}

func (p *ProtectedBroker) Balance(ctx context.Context, asset string) (float64, error) {
	var bal float64
	err := p.market(ctx, func() error {
		var err error
		bal, err = p.inner.Balance(ctx, asset)
		return err
	})
	return bal, err
}
