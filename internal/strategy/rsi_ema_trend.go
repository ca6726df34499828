package strategy

import (
	"fmt"

	"github.com/gorkemacar/signalbot/internal/indicators"
	"github.com/gorkemacar/signalbot/pkg/types"
)

// rsiEMATrend trades RSI midline crosses in the direction of the EMA
// trend: longs only while the fast EMA is above the slow one.
type rsiEMATrend struct {
	rsiPeriod int
	emaFast   int
	emaSlow   int
}

func NewRSIEMATrend(p Params) (Strategy, error) {
	s := &rsiEMATrend{rsiPeriod: 14, emaFast: 50, emaSlow: 200}
	if p.RSIPeriod > 0 {
		s.rsiPeriod = p.RSIPeriod
	}
	if p.FastPeriod > 0 {
		s.emaFast = p.FastPeriod
	}
	if p.SlowPeriod > 0 {
		s.emaSlow = p.SlowPeriod
	}
	if s.emaFast >= s.emaSlow {
		return nil, fmt.Errorf("rsi_ema_trend: fast EMA %d must be below slow %d", s.emaFast, s.emaSlow)
	}
	return s, nil
}

func (s *rsiEMATrend) Name() string { return "rsi_ema_trend" }

func (s *rsiEMATrend) MinBars() int { return s.emaSlow + 2 }

func (s *rsiEMATrend) LiveSignal(_, _, _, c, _ []float64) types.Signal {
	if len(c) < s.MinBars() {
		return types.SignalNone
	}
	fast := indicators.EMA(c, s.emaFast)
	slow := indicators.EMA(c, s.emaSlow)
	rsi := indicators.RSI(c, s.rsiPeriod)
	return s.classify(fast, slow, rsi, len(c)-1)
}

func (s *rsiEMATrend) GenerateSignals(data []types.OHLCV) []types.Signal {
	_, _, _, c, _ := splitOHLCV(data)
	fast := indicators.EMA(c, s.emaFast)
	slow := indicators.EMA(c, s.emaSlow)
	rsi := indicators.RSI(c, s.rsiPeriod)
	out := make([]types.Signal, len(data))
	for i := 1; i < len(data); i++ {
		out[i] = s.classify(fast, slow, rsi, i)
	}
	return out
}

func (s *rsiEMATrend) classify(fast, slow, rsi []float64, i int) types.Signal {
	if i < 1 || !valid(fast[i], slow[i], rsi[i-1], rsi[i]) {
		return types.SignalNone
	}
	if fast[i] > slow[i] && rsi[i-1] < 50 && rsi[i] >= 50 {
		return types.SignalLong
	}
	if fast[i] < slow[i] && rsi[i-1] > 50 && rsi[i] <= 50 {
		return types.SignalShort
	}
	return types.SignalNone
}
