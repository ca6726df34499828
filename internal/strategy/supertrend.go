package strategy

import (
	"fmt"

	"github.com/gorkemacar/signalbot/internal/indicators"
	"github.com/gorkemacar/signalbot/pkg/types"
)

// superTrend trades SuperTrend direction flips: a bearish-to-bullish flip
// opens a long, the reverse a short.
type superTrend struct {
	atrPeriod  int
	multiplier float64
}

func NewSuperTrend(p Params) (Strategy, error) {
	s := &superTrend{atrPeriod: 10, multiplier: 2.0}
	if p.ATRPeriod > 0 {
		s.atrPeriod = p.ATRPeriod
	}
	if p.Multiplier > 0 {
		s.multiplier = p.Multiplier
	}
	if s.atrPeriod < 1 {
		return nil, fmt.Errorf("supertrend: atr period %d too short", s.atrPeriod)
	}
	return s, nil
}

func (s *superTrend) Name() string { return "supertrend" }

func (s *superTrend) MinBars() int { return s.atrPeriod + 2 }

func (s *superTrend) LiveSignal(_, h, l, c, _ []float64) types.Signal {
	if len(c) < s.MinBars() {
		return types.SignalNone
	}
	res := indicators.SuperTrend(h, l, c, s.atrPeriod, s.multiplier)
	return s.classify(res, len(c)-1)
}

func (s *superTrend) GenerateSignals(data []types.OHLCV) []types.Signal {
	_, h, l, c, _ := splitOHLCV(data)
	res := indicators.SuperTrend(h, l, c, s.atrPeriod, s.multiplier)
	out := make([]types.Signal, len(data))
	for i := 1; i < len(data); i++ {
		out[i] = s.classify(res, i)
	}
	return out
}

func (s *superTrend) classify(res indicators.SuperTrendResult, i int) types.Signal {
	if i < 1 || res.Direction[i-1] == 0 || res.Direction[i] == 0 {
		return types.SignalNone
	}
	if res.Direction[i-1] == -1 && res.Direction[i] == 1 {
		return types.SignalLong
	}
	if res.Direction[i-1] == 1 && res.Direction[i] == -1 {
		return types.SignalShort
	}
	return types.SignalNone
}
