package indicators

import "math"

// BollingerResult holds the three Bollinger bands.
type BollingerResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger computes Bollinger bands: an SMA middle band and upper/lower
// bands stdDev standard deviations away.
func Bollinger(closes []float64, period int, stdDev float64) BollingerResult {
	n := len(closes)
	res := BollingerResult{
		Upper:  nanSeries(n),
		Middle: SMA(closes, period),
		Lower:  nanSeries(n),
	}
	if period <= 1 || n < period {
		return res
	}

	for i := period - 1; i < n; i++ {
		mean := res.Middle[i]
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - mean
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		res.Upper[i] = mean + stdDev*sd
		res.Lower[i] = mean - stdDev*sd
	}
	return res
}
