package backtest

import (
	"math"

	"github.com/volatiletech/null"

	"sma-backtest/internal/model"
)

const tradingDaysPerYear = 252

// computeStats derives the summary statistics from the equity curve.
func computeStats(equity []model.EquityPoint, initialCapital, finalEquity float64, trades int, nominalDays float64) Stats {
	st := Stats{
		FinalEquity:    finalEquity,
		TotalReturnPct: (finalEquity/initialCapital - 1) * 100,
		TradeCount:     trades,
	}

	st.DaySpan = daySpan(equity)
	if st.DaySpan <= 0 {
		st.DaySpan = nominalDays
	}
	if growth := finalEquity / initialCapital; growth > 0 {
		st.CAGR = finite(math.Pow(growth, 365/st.DaySpan) - 1)
	} else {
		// A wiped-out (or negative) account has no real root; report total loss.
		st.CAGR = -1
	}

	st.Volatility = finite(stddev(periodReturns(equity)) * math.Sqrt(tradingDaysPerYear))
	if st.Volatility > 0 {
		st.Sharpe = null.Float64From(finite(st.CAGR / st.Volatility))
	}

	st.MaxDrawdownPct = maxDrawdown(equity)
	return st
}

// daySpan is the elapsed calendar time between the first and last points, in days.
func daySpan(equity []model.EquityPoint) float64 {
	if len(equity) < 2 {
		return 0
	}
	return equity[len(equity)-1].Time.Sub(equity[0].Time).Hours() / 24
}

// periodReturns returns equity[k]/equity[k-1]-1 for consecutive points. A pair whose
// first value is not positive contributes a zero return.
func periodReturns(equity []model.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for k := 1; k < len(equity); k++ {
		prev := equity[k-1].Equity
		if prev <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, equity[k].Equity/prev-1)
	}
	return out
}

// stddev is the population standard deviation; 0 for an empty input.
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(xs)))
}

// maxDrawdown returns the largest (peak-equity)/peak seen along the curve, clamped to
// [0, 1]. Points under a non-positive running peak count as no drawdown.
func maxDrawdown(equity []model.EquityPoint) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - p.Equity) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return math.Min(maxDD, 1)
}

// finite maps NaN to 0 and clamps infinities to the largest float so results stay
// encodable.
func finite(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case math.IsInf(x, 1):
		return math.MaxFloat64
	case math.IsInf(x, -1):
		return -math.MaxFloat64
	}
	return x
}
