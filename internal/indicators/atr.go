package indicators

import "math"

// ATR computes the Average True Range over period using Wilder's smoothing.
func ATR(high, low, close []float64, period int) []float64 {
	n := len(close)
	out := nanSeries(n)
	if period <= 0 || n < period+1 || len(high) != n || len(low) != n {
		return out
	}

	tr := make([]float64, n)
	tr[0] = high[0] - low[0]
	for i := 1; i < n; i++ {
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	prev := sum / float64(period)
	out[period] = prev
	for i := period + 1; i < n; i++ {
		prev = (prev*float64(period-1) + tr[i]) / float64(period)
		out[i] = prev
	}
	return out
}

// SuperTrendResult holds the SuperTrend line and its direction
// (+1 bullish, -1 bearish, 0 during warmup).
type SuperTrendResult struct {
	Line      []float64
	Direction []int
}

// SuperTrend computes the SuperTrend indicator from ATR bands.
func SuperTrend(high, low, close []float64, period int, multiplier float64) SuperTrendResult {
	n := len(close)
	res := SuperTrendResult{
		Line:      nanSeries(n),
		Direction: make([]int, n),
	}
	atr := ATR(high, low, close, period)
	if n == 0 {
		return res
	}

	upper := nanSeries(n)
	lower := nanSeries(n)
	for i := period; i < n; i++ {
		mid := (high[i] + low[i]) / 2
		basicUpper := mid + multiplier*atr[i]
		basicLower := mid - multiplier*atr[i]

		// Final bands ratchet: they only tighten while price stays inside.
		if i > period && valid(upper[i-1]) && (basicUpper < upper[i-1] || close[i-1] > upper[i-1]) {
			upper[i] = basicUpper
		} else if i > period {
			upper[i] = upper[i-1]
		} else {
			upper[i] = basicUpper
		}
		if i > period && valid(lower[i-1]) && (basicLower > lower[i-1] || close[i-1] < lower[i-1]) {
			lower[i] = basicLower
		} else if i > period {
			lower[i] = lower[i-1]
		} else {
			lower[i] = basicLower
		}

		dir := res.Direction[i-1]
		if dir == 0 {
			dir = 1
		}
		if dir == 1 && close[i] < lower[i] {
			dir = -1
		} else if dir == -1 && close[i] > upper[i] {
			dir = 1
		}
		res.Direction[i] = dir
		if dir == 1 {
			res.Line[i] = lower[i]
		} else {
			res.Line[i] = upper[i]
		}
	}
	return res
}
