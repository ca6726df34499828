package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorkemacar/signalbot/pkg/types"
)

// waveSeries produces a deterministic oscillating series with a mild
// drift, enough movement to exercise every indicator.
func waveSeries(n int) []types.OHLCV {
	data := make([]types.OHLCV, n)
	for i := 0; i < n; i++ {
		c := 100 + 10*math.Sin(float64(i)/7) + float64(i)*0.05
		data[i] = types.OHLCV{Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return data
}

func flatSeries(n int) []types.OHLCV {
	data := make([]types.OHLCV, n)
	for i := range data {
		data[i] = types.OHLCV{Open: 100, High: 100, Low: 100, Close: 100, Volume: 1000}
	}
	return data
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, []string{
		"bollinger_bounce", "ema_crossover", "macd_signal",
		"rsi_ema_trend", "rsi_threshold", "supertrend",
	}, reg.Names())

	for _, name := range reg.Names() {
		s, err := reg.Create(name, Params{})
		require.NoError(t, err, name)
		assert.Equal(t, name, s.Name())
		assert.Greater(t, s.MinBars(), 1, name)
	}

	_, err := reg.Create("martingale", Params{})
	assert.ErrorContains(t, err, "unknown strategy")
}

func TestFactoryValidation(t *testing.T) {
	_, err := NewRSIThreshold(Params{Oversold: 80, Overbought: 20})
	assert.Error(t, err)

	_, err = NewEMACrossover(Params{FastPeriod: 20, SlowPeriod: 10})
	assert.Error(t, err)

	_, err = NewRSIEMATrend(Params{FastPeriod: 200, SlowPeriod: 50})
	assert.Error(t, err)

	_, err = NewMACDSignal(Params{FastPeriod: 26, SlowPeriod: 12})
	assert.Error(t, err)
}

func TestShortWindowReturnsNone(t *testing.T) {
	reg := NewRegistry()
	data := waveSeries(3)
	o, h, l, c, v := splitOHLCV(data)
	for _, name := range reg.Names() {
		s, err := reg.Create(name, Params{})
		require.NoError(t, err)
		assert.Equal(t, types.SignalNone, s.LiveSignal(o, h, l, c, v), name)
	}
}

// Live evaluation of a growing window must agree with the vectorized
// replay of the full series at every bar.
func TestLiveBacktestParity(t *testing.T) {
	params := map[string]Params{
		"rsi_threshold":    {RSIPeriod: 14, Overbought: 60, Oversold: 40},
		"ema_crossover":    {FastPeriod: 5, SlowPeriod: 12, RSIPeriod: 14},
		"rsi_ema_trend":    {RSIPeriod: 5, FastPeriod: 8, SlowPeriod: 21},
		"macd_signal":      {FastPeriod: 6, SlowPeriod: 13, SignalPeriod: 5},
		"bollinger_bounce": {Period: 10, StdDev: 1.5},
		"supertrend":       {ATRPeriod: 7, Multiplier: 1.5},
	}

	reg := NewRegistry()
	data := waveSeries(150)
	for name, p := range params {
		t.Run(name, func(t *testing.T) {
			s, err := reg.Create(name, p)
			require.NoError(t, err)

			vectorized := s.GenerateSignals(data)
			require.Len(t, vectorized, len(data))

			for i := s.MinBars(); i < len(data); i++ {
				o, h, l, c, v := splitOHLCV(data[:i+1])
				assert.Equal(t, vectorized[i], s.LiveSignal(o, h, l, c, v),
					"bar %d", i)
			}
		})
	}
}

func TestRSIThresholdDirections(t *testing.T) {
	s, err := NewRSIThreshold(Params{RSIPeriod: 14, Overbought: 80, Oversold: 20})
	require.NoError(t, err)

	up := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 200 - float64(i)
	}

	assert.Equal(t, types.SignalShort, s.LiveSignal(nil, nil, nil, up, nil))
	assert.Equal(t, types.SignalLong, s.LiveSignal(nil, nil, nil, down, nil))
}

func TestBollingerBounceLong(t *testing.T) {
	s, err := NewBollingerBounce(Params{Period: 5, StdDev: 1.5})
	require.NoError(t, err)

	data := flatSeries(10)
	data = append(data,
		types.OHLCV{Open: 100, High: 100, Low: 80, Close: 80, Volume: 1000},
		types.OHLCV{Open: 80, High: 100, Low: 80, Close: 100, Volume: 1000},
	)

	signals := s.GenerateSignals(data)
	assert.Equal(t, types.SignalLong, signals[len(signals)-1])

	o, h, l, c, v := splitOHLCV(data)
	assert.Equal(t, types.SignalLong, s.LiveSignal(o, h, l, c, v))
}

func TestSuperTrendFlipsLongOnRally(t *testing.T) {
	s, err := NewSuperTrend(Params{ATRPeriod: 5, Multiplier: 2})
	require.NoError(t, err)

	var data []types.OHLCV
	c := 100.0
	for i := 0; i < 25; i++ {
		data = append(data, types.OHLCV{Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000})
		c -= 1
	}
	for i := 0; i < 15; i++ {
		data = append(data, types.OHLCV{Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000})
		c += 3
	}

	signals := s.GenerateSignals(data)
	long := false
	for _, sig := range signals[25:] {
		if sig == types.SignalLong {
			long = true
		}
	}
	assert.True(t, long, "rally should flip the trend long")
}

func TestGenerateSignalsEmptyInput(t *testing.T) {
	reg := NewRegistry()
	for _, name := range reg.Names() {
		s, err := reg.Create(name, Params{})
		require.NoError(t, err)
		assert.Empty(t, s.GenerateSignals(nil), name)
	}
}
