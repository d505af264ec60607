package analysis

import (
	"math"
	"sort"
	"time"

	"sma-backtest/internal/model"
)

// Profile is a strategy-independent summary of a bar series. It gives a backtest
// something to be measured against: what holding would have returned, and what a
// frictionless long-only trader with perfect foresight could have made.
type Profile struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Count int       `json:"count"`

	MinClose  float64 `json:"min_close"`
	MaxClose  float64 `json:"max_close"`
	MeanClose float64 `json:"mean_close"`
	P05Close  float64 `json:"p05_close"`
	P95Close  float64 `json:"p95_close"`

	SpreadP95P05 float64 `json:"spread_p95_p05"`

	BuyAndHoldPct float64 `json:"buy_and_hold_pct"`
	// OraclePct compounds every up move and sits out every down move.
	OraclePct float64 `json:"oracle_pct"`
}

func ComputeProfile(bars []model.Bar) Profile {
	p := Profile{}
	if len(bars) == 0 {
		return p
	}
	p.Count = len(bars)
	p.Start = bars[0].Time
	p.End = bars[len(bars)-1].Time

	sum := 0.0
	minv := math.Inf(1)
	maxv := math.Inf(-1)
	vals := make([]float64, 0, len(bars))
	for _, b := range bars {
		v := b.Close
		vals = append(vals, v)
		sum += v
		if v < minv {
			minv = v
		}
		if v > maxv {
			maxv = v
		}
	}
	sort.Float64s(vals)
	p.MinClose = minv
	p.MaxClose = maxv
	p.MeanClose = sum / float64(len(vals))
	p.P05Close = percentileSorted(vals, 0.05)
	p.P95Close = percentileSorted(vals, 0.95)
	p.SpreadP95P05 = p.P95Close - p.P05Close

	first, last := bars[0].Close, bars[len(bars)-1].Close
	if first > 0 {
		p.BuyAndHoldPct = (last/first - 1) * 100
	}
	p.OraclePct = oracleReturn(bars)
	return p
}

func percentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	// Linear interpolation between order stats.
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func oracleReturn(bars []model.Bar) float64 {
	growth := 1.0
	for i := 1; i < len(bars); i++ {
		prev, cur := bars[i-1].Close, bars[i].Close
		if prev > 0 && cur > prev {
			growth *= cur / prev
		}
	}
	if math.IsInf(growth, 0) {
		return math.MaxFloat64
	}
	return (growth - 1) * 100
}
