package strategy

import (
	"fmt"

	"github.com/gorkemacar/signalbot/internal/indicators"
	"github.com/gorkemacar/signalbot/pkg/types"
)

// emaCrossover trades fast/slow EMA crossovers, filtered by RSI so that a
// bullish cross into an already-overbought market is ignored.
type emaCrossover struct {
	fast       int
	slow       int
	rsiPeriod  int
	oversold   float64
	overbought float64
}

func NewEMACrossover(p Params) (Strategy, error) {
	s := &emaCrossover{fast: 5, slow: 12, rsiPeriod: 14, oversold: 30, overbought: 70}
	if p.FastPeriod > 0 {
		s.fast = p.FastPeriod
	}
	if p.SlowPeriod > 0 {
		s.slow = p.SlowPeriod
	}
	if p.RSIPeriod > 0 {
		s.rsiPeriod = p.RSIPeriod
	}
	if p.Oversold > 0 {
		s.oversold = p.Oversold
	}
	if p.Overbought > 0 {
		s.overbought = p.Overbought
	}
	if s.fast >= s.slow {
		return nil, fmt.Errorf("ema_crossover: fast period %d must be below slow %d", s.fast, s.slow)
	}
	return s, nil
}

func (s *emaCrossover) Name() string { return "ema_crossover" }

func (s *emaCrossover) MinBars() int { return s.slow + 2 }

func (s *emaCrossover) LiveSignal(_, _, _, c, _ []float64) types.Signal {
	if len(c) < s.MinBars() {
		return types.SignalNone
	}
	fema := indicators.EMA(c, s.fast)
	sema := indicators.EMA(c, s.slow)
	rsi := indicators.RSI(c, s.rsiPeriod)
	return s.classify(fema, sema, rsi, len(c)-1)
}

func (s *emaCrossover) GenerateSignals(data []types.OHLCV) []types.Signal {
	_, _, _, c, _ := splitOHLCV(data)
	fema := indicators.EMA(c, s.fast)
	sema := indicators.EMA(c, s.slow)
	rsi := indicators.RSI(c, s.rsiPeriod)
	out := make([]types.Signal, len(data))
	for i := 1; i < len(data); i++ {
		out[i] = s.classify(fema, sema, rsi, i)
	}
	return out
}

func (s *emaCrossover) classify(fema, sema, rsi []float64, i int) types.Signal {
	if i < 1 || !valid(fema[i-1], fema[i], sema[i-1], sema[i], rsi[i]) {
		return types.SignalNone
	}
	if fema[i-1] <= sema[i-1] && fema[i] > sema[i] && rsi[i] < s.overbought {
		return types.SignalLong
	}
	if fema[i-1] >= sema[i-1] && fema[i] < sema[i] && rsi[i] > s.oversold {
		return types.SignalShort
	}
	return types.SignalNone
}
