// Package strategy defines the signal strategy contract and the built-in
// implementations. Every strategy exists in two forms with identical
// semantics: LiveSignal evaluates the latest closed bar of a rolling
// window, GenerateSignals replays a historical series for backtesting.
package strategy

import (
	"fmt"
	"math"
	"sort"

	"github.com/gorkemacar/signalbot/pkg/types"
)

// Strategy turns a window of closed bars into directional signals.
// LiveSignal must return SignalNone, never panic, when the window is
// shorter than MinBars.
type Strategy interface {
	Name() string
	MinBars() int
	LiveSignal(o, h, l, c, v []float64) types.Signal
	GenerateSignals(data []types.OHLCV) []types.Signal
}

// Params carries every tunable the built-in strategies accept. Zero
// values mean "use the strategy default"; factories validate the rest.
type Params struct {
	RSIPeriod    int     `json:"rsi_period"`
	Overbought   float64 `json:"overbought"`
	Oversold     float64 `json:"oversold"`
	FastPeriod   int     `json:"fast_period"`
	SlowPeriod   int     `json:"slow_period"`
	SignalPeriod int     `json:"signal_period"`
	Period       int     `json:"period"`
	StdDev       float64 `json:"std_dev"`
	ATRPeriod    int     `json:"atr_period"`
	Multiplier   float64 `json:"multiplier"`
}

// Factory builds a strategy from validated parameters.
type Factory func(p Params) (Strategy, error)

// Registry maps strategy names to factories. It is populated once at
// startup and read-only afterwards.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry with every built-in strategy registered.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{
		"rsi_threshold":    NewRSIThreshold,
		"ema_crossover":    NewEMACrossover,
		"rsi_ema_trend":    NewRSIEMATrend,
		"macd_signal":      NewMACDSignal,
		"bollinger_bounce": NewBollingerBounce,
		"supertrend":       NewSuperTrend,
	}}
}

// Create instantiates the named strategy. Unknown names are errors.
func (r *Registry) Create(name string, p Params) (Strategy, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (available: %v)", name, r.Names())
	}
	return factory(p)
}

// Names lists the registered strategies in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func splitOHLCV(data []types.OHLCV) (o, h, l, c, v []float64) {
	n := len(data)
	o = make([]float64, n)
	h = make([]float64, n)
	l = make([]float64, n)
	c = make([]float64, n)
	v = make([]float64, n)
	for i, bar := range data {
		o[i] = bar.Open
		h[i] = bar.High
		l[i] = bar.Low
		c[i] = bar.Close
		v[i] = bar.Volume
	}
	return o, h, l, c, v
}

func valid(vals ...float64) bool {
	for _, x := range vals {
		if math.IsNaN(x) {
			return false
		}
	}
	return true
}
