package exchange

import (
	"context"

	"github.com/gorkemacar/signalbot/pkg/types"
)

// Broker abstracts the exchange operations the position core depends on:
// order placement, margin and leverage configuration, and price queries.
// All calls are network-bound and fallible; implementations must normalize
// "already in desired state" configuration errors to success.
type Broker interface {
	// Market data
	GetMarkPrice(ctx context.Context, symbol string) (float64, error)
	GetKlines(ctx context.Context, symbol, timeframe string, limit int) ([]types.Bar, error)

	// Instruments
	GetInstrument(ctx context.Context, symbol string) (*Instrument, error)
	ListSymbols(ctx context.Context, quote string) ([]string, error)

	// Orders and positions
	MarketOrder(ctx context.Context, symbol string, side types.Side, qty float64) error
	PositionAmt(ctx context.Context, symbol string) (float64, error)
	ClosePosition(ctx context.Context, symbol string) error
	CancelAllOrders(ctx context.Context, symbol string) error

	// Protective legs: side is the closing direction of the position.
	PlaceStopMarket(ctx context.Context, symbol string, side types.Side, stopPrice float64) error
	PlaceTakeProfit(ctx context.Context, symbol string, side types.Side, price float64) error

	// Margin configuration
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	EnsureIsolatedMargin(ctx context.Context, symbol string) error

	// Account
	Balance(ctx context.Context, asset string) (float64, error)
}

// Instrument carries the exchange-mandated increments for a symbol. The
// position core rounds quantities to QtyStep and SL/TP prices to TickSize.
type Instrument struct {
	Symbol    string
	Status    string
	QuoteCoin string
	TickSize  float64
	QtyStep   float64
	MinQty    float64
}
