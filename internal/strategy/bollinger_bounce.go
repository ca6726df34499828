package strategy

import (
	"fmt"

	"github.com/gorkemacar/signalbot/internal/indicators"
	"github.com/gorkemacar/signalbot/pkg/types"
)

// bollingerBounce fades band breaks: a close re-entering the bands from
// below the lower band is a long, from above the upper band a short.
type bollingerBounce struct {
	period int
	stdDev float64
}

func NewBollingerBounce(p Params) (Strategy, error) {
	s := &bollingerBounce{period: 20, stdDev: 2.0}
	if p.Period > 0 {
		s.period = p.Period
	}
	if p.StdDev > 0 {
		s.stdDev = p.StdDev
	}
	if s.period < 2 {
		return nil, fmt.Errorf("bollinger_bounce: period %d too short", s.period)
	}
	return s, nil
}

func (s *bollingerBounce) Name() string { return "bollinger_bounce" }

func (s *bollingerBounce) MinBars() int { return s.period + 2 }

func (s *bollingerBounce) LiveSignal(_, _, _, c, _ []float64) types.Signal {
	if len(c) < s.MinBars() {
		return types.SignalNone
	}
	bands := indicators.Bollinger(c, s.period, s.stdDev)
	return s.classify(c, bands, len(c)-1)
}

func (s *bollingerBounce) GenerateSignals(data []types.OHLCV) []types.Signal {
	_, _, _, c, _ := splitOHLCV(data)
	bands := indicators.Bollinger(c, s.period, s.stdDev)
	out := make([]types.Signal, len(data))
	for i := 1; i < len(data); i++ {
		out[i] = s.classify(c, bands, i)
	}
	return out
}

func (s *bollingerBounce) classify(c []float64, bands indicators.BollingerResult, i int) types.Signal {
	if i < 1 || !valid(bands.Upper[i-1], bands.Upper[i], bands.Lower[i-1], bands.Lower[i]) {
		return types.SignalNone
	}
	if c[i-1] < bands.Lower[i-1] && c[i] > bands.Lower[i] {
		return types.SignalLong
	}
	if c[i-1] > bands.Upper[i-1] && c[i] < bands.Upper[i] {
		return types.SignalShort
	}
	return types.SignalNone
}
