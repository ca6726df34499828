package types

import "time"

// OHLCV is a single candlestick used by strategies and the backtester.
type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Bar is a candlestick as delivered by the market-data stream, carrying its
// origin and closedness. Only closed bars ever reach the bar store.
type Bar struct {
	Symbol    string
	Timeframe string
	OpenTime  time.Time
	CloseTime time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Closed    bool
}

// OHLCV converts a Bar into the plain candle form.
func (b Bar) OHLCV() OHLCV {
	return OHLCV{
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
		Timestamp: b.CloseTime,
	}
}

// Side is the direction of a position.
type Side int

const (
	SideLong Side = iota
	SideShort
)

func (s Side) String() string {
	switch s {
	case SideLong:
		return "LONG"
	case SideShort:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the closing direction for a position side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// Signal is a trading signal produced by a strategy from a window of closed
// bars. SignalNone means "no action", including the insufficient-data case.
type Signal int

const (
	SignalNone Signal = iota
	SignalLong
	SignalShort
)

func (s Signal) String() string {
	switch s {
	case SignalLong:
		return "LONG"
	case SignalShort:
		return "SHORT"
	default:
		return "NONE"
	}
}

// Side converts a directional signal into a position side.
// Only meaningful for SignalLong and SignalShort.
func (s Signal) Side() Side {
	if s == SignalShort {
		return SideShort
	}
	return SideLong
}
