package strategy

import (
	"fmt"

	"github.com/gorkemacar/signalbot/internal/indicators"
	"github.com/gorkemacar/signalbot/pkg/types"
)

// rsiThreshold shorts overbought markets and longs oversold ones.
type rsiThreshold struct {
	period     int
	overbought float64
	oversold   float64
}

func NewRSIThreshold(p Params) (Strategy, error) {
	s := &rsiThreshold{period: 14, overbought: 80, oversold: 20}
	if p.RSIPeriod > 0 {
		s.period = p.RSIPeriod
	}
	if p.Overbought > 0 {
		s.overbought = p.Overbought
	}
	if p.Oversold > 0 {
		s.oversold = p.Oversold
	}
	if s.oversold >= s.overbought {
		return nil, fmt.Errorf("rsi_threshold: oversold %.1f must be below overbought %.1f",
			s.oversold, s.overbought)
	}
	return s, nil
}

func (s *rsiThreshold) Name() string { return "rsi_threshold" }

func (s *rsiThreshold) MinBars() int { return s.period + 1 }

func (s *rsiThreshold) LiveSignal(_, _, _, c, _ []float64) types.Signal {
	if len(c) < s.MinBars() {
		return types.SignalNone
	}
	rsi := indicators.RSI(c, s.period)
	return s.classify(rsi[len(rsi)-1])
}

func (s *rsiThreshold) GenerateSignals(data []types.OHLCV) []types.Signal {
	_, _, _, c, _ := splitOHLCV(data)
	rsi := indicators.RSI(c, s.period)
	out := make([]types.Signal, len(data))
	for i, r := range rsi {
		out[i] = s.classify(r)
	}
	return out
}

func (s *rsiThreshold) classify(rsi float64) types.Signal {
	if !valid(rsi) {
		return types.SignalNone
	}
	if rsi > s.overbought {
		return types.SignalShort
	}
	if rsi < s.oversold {
		return types.SignalLong
	}
	return types.SignalNone
}
