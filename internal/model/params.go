package model

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is returned by StrategyParams.Validate.
var ErrInvalidParams = errors.New("invalid strategy parameters")

// StrategyParams configures one SMA crossover backtest.
// Percentages are expressed in percent (0.1 means 0.1%), not fractions.
//
// Validate bounds the cost and sizing fields tighter than "non-negative":
//   - SlippagePct < 100, because a SELL fills at close*(1-slippage) and 100% or more
//     would fill at a zero or negative price.
//   - CommissionPct < 100, because a commission of the whole trade value leaves no
//     proceeds from a SELL and makes every BUY cost at least double its value.
//   - SizePercent <= 100, because entries are funded from cash only. The engine has
//     no leverage or shorting, so a position can never commit more than it holds.
type StrategyParams struct {
	ShortPeriod    int     `json:"short_period" yaml:"short_period"`
	LongPeriod     int     `json:"long_period" yaml:"long_period"`
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	SlippagePct    float64 `json:"slippage_pct" yaml:"slippage_pct"`
	CommissionPct  float64 `json:"commission_pct" yaml:"commission_pct"`
	SizePercent    float64 `json:"size_percent" yaml:"size_percent"`
}

// DefaultParams mirrors the values the web form starts with.
func DefaultParams() StrategyParams {
	return StrategyParams{
		ShortPeriod:    9,
		LongPeriod:     21,
		InitialCapital: 10000,
		SlippagePct:    0.1,
		CommissionPct:  0.05,
		SizePercent:    100,
	}
}

// Validate rejects parameter sets the engine cannot run. It never looks at data.
func (p StrategyParams) Validate() error {
	if p.ShortPeriod < 1 {
		return fmt.Errorf("%w: short_period must be >= 1 (got %d)", ErrInvalidParams, p.ShortPeriod)
	}
	if p.ShortPeriod >= p.LongPeriod {
		return fmt.Errorf("%w: short_period (%d) must be < long_period (%d)", ErrInvalidParams, p.ShortPeriod, p.LongPeriod)
	}
	if !(p.InitialCapital > 0) {
		return fmt.Errorf("%w: initial_capital must be > 0", ErrInvalidParams)
	}
	if p.SlippagePct < 0 || p.SlippagePct >= 100 {
		return fmt.Errorf("%w: slippage_pct must be in [0, 100)", ErrInvalidParams)
	}
	if p.CommissionPct < 0 || p.CommissionPct >= 100 {
		return fmt.Errorf("%w: commission_pct must be in [0, 100)", ErrInvalidParams)
	}
	if p.SizePercent < 0 || p.SizePercent > 100 {
		return fmt.Errorf("%w: size_percent must be in [0, 100]", ErrInvalidParams)
	}
	return nil
}
