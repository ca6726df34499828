package backtest

import "math"

// barsPerYear annualizes ratios computed from the equity curve. Daily
// bars are the common replay granularity, matching the 252 trading days
// convention.
const barsPerYear = 252

func (r *Results) computeMetrics(initialBalance float64) {
	if initialBalance > 0 {
		r.TotalReturn = (r.FinalBalance - initialBalance) / initialBalance * 100
	}
	r.WinRate = winRate(r.Trades)
	r.MaxDrawdown = maxDrawdown(r.EquityCurve)
	r.ProfitFactor = profitFactor(r.Trades)
	r.Expectancy = expectancy(r.Trades)

	returns := barReturns(r.EquityCurve)
	r.Sharpe = sharpeRatio(returns)
	r.Sortino = sortinoRatio(returns)
}

func winRate(trades []Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades)) * 100
}

// maxDrawdown is the deepest peak-to-trough fall of the equity curve as a
// positive percentage.
func maxDrawdown(equity []float64) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			dd := (peak - e) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst * 100
}

func profitFactor(trades []Trade) float64 {
	grossWin, grossLoss := 0.0, 0.0
	for _, t := range trades {
		if t.PnL > 0 {
			grossWin += t.PnL
		} else {
			grossLoss -= t.PnL
		}
	}
	if grossLoss == 0 {
		return math.NaN()
	}
	return grossWin / grossLoss
}

func expectancy(trades []Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range trades {
		sum += t.PnL
	}
	return sum / float64(len(trades))
}

func barReturns(equity []float64) []float64 {
	var out []float64
	for i := 1; i < len(equity); i++ {
		if equity[i-1] != 0 {
			out = append(out, (equity[i]-equity[i-1])/equity[i-1])
		}
	}
	return out
}

func sharpeRatio(returns []float64) float64 {
	mean, std := meanStd(returns)
	if std == 0 {
		return math.NaN()
	}
	return math.Sqrt(barsPerYear) * mean / std
}

func sortinoRatio(returns []float64) float64 {
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return math.NaN()
	}
	mean, _ := meanStd(returns)
	_, sigmaDown := meanStd(downside)
	if sigmaDown == 0 {
		return math.NaN()
	}
	return math.Sqrt(barsPerYear) * mean / sigmaDown
}

func meanStd(values []float64) (mean, std float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= n
	if n < 2 {
		return mean, 0
	}
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= n - 1
	return mean, math.Sqrt(variance)
}
