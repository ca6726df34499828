package indicators

// MACDResult holds the MACD line, its signal line, and the histogram.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes the Moving Average Convergence Divergence with the given
// fast/slow EMA periods and a signal EMA over the MACD line.
func MACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) MACDResult {
	n := len(closes)
	res := MACDResult{
		MACD:      nanSeries(n),
		Signal:    nanSeries(n),
		Histogram: nanSeries(n),
	}
	if fastPeriod <= 0 || slowPeriod <= fastPeriod || signalPeriod <= 0 || n < slowPeriod {
		return res
	}

	fast := EMA(closes, fastPeriod)
	slow := EMA(closes, slowPeriod)
	for i := range closes {
		if valid(fast[i]) && valid(slow[i]) {
			res.MACD[i] = fast[i] - slow[i]
		}
	}

	// Signal line: EMA over the valid portion of the MACD line.
	start := slowPeriod - 1
	if start+signalPeriod > n {
		return res
	}
	sig := EMA(res.MACD[start:], signalPeriod)
	for i, v := range sig {
		res.Signal[start+i] = v
		if valid(v) {
			res.Histogram[start+i] = res.MACD[start+i] - v
		}
	}
	return res
}
