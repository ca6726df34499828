package strategy

import (
	"fmt"

	"github.com/gorkemacar/signalbot/internal/indicators"
	"github.com/gorkemacar/signalbot/pkg/types"
)

// macdSignal trades crossings of the MACD line through its signal line.
type macdSignal struct {
	fast   int
	slow   int
	signal int
}

func NewMACDSignal(p Params) (Strategy, error) {
	s := &macdSignal{fast: 12, slow: 26, signal: 9}
	if p.FastPeriod > 0 {
		s.fast = p.FastPeriod
	}
	if p.SlowPeriod > 0 {
		s.slow = p.SlowPeriod
	}
	if p.SignalPeriod > 0 {
		s.signal = p.SignalPeriod
	}
	if s.fast >= s.slow {
		return nil, fmt.Errorf("macd_signal: fast period %d must be below slow %d", s.fast, s.slow)
	}
	return s, nil
}

func (s *macdSignal) Name() string { return "macd_signal" }

func (s *macdSignal) MinBars() int { return s.slow + s.signal }

func (s *macdSignal) LiveSignal(_, _, _, c, _ []float64) types.Signal {
	if len(c) < s.MinBars() {
		return types.SignalNone
	}
	res := indicators.MACD(c, s.fast, s.slow, s.signal)
	return s.classify(res, len(c)-1)
}

func (s *macdSignal) GenerateSignals(data []types.OHLCV) []types.Signal {
	_, _, _, c, _ := splitOHLCV(data)
	res := indicators.MACD(c, s.fast, s.slow, s.signal)
	out := make([]types.Signal, len(data))
	for i := 1; i < len(data); i++ {
		out[i] = s.classify(res, i)
	}
	return out
}

func (s *macdSignal) classify(res indicators.MACDResult, i int) types.Signal {
	if i < 1 || !valid(res.MACD[i-1], res.MACD[i], res.Signal[i-1], res.Signal[i]) {
		return types.SignalNone
	}
	if res.MACD[i-1] < res.Signal[i-1] && res.MACD[i] > res.Signal[i] {
		return types.SignalLong
	}
	if res.MACD[i-1] > res.Signal[i-1] && res.MACD[i] < res.Signal[i] {
		return types.SignalShort
	}
	return types.SignalNone
}
