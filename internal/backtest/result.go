package backtest

import (
	"errors"

	"github.com/volatiletech/null"

	"sma-backtest/internal/indicator"
	"sma-backtest/internal/model"
)

var (
	// ErrInsufficientData is returned when the series is too short for the configured averages.
	ErrInsufficientData = indicator.ErrInsufficientData
	// ErrInvariantViolation marks an internal-consistency fault in the simulation,
	// such as a BUY while a position is already open. It is never recoverable.
	ErrInvariantViolation = errors.New("backtest invariant violated")
)

// Stats summarizes a run.
//
// MaxDrawdownPct is a fraction in [0, 1] despite its name. Sharpe is null when the
// equity curve has no volatility to divide by.
type Stats struct {
	FinalEquity    float64      `json:"final_equity"`
	TotalReturnPct float64      `json:"total_return_pct"`
	CAGR           float64      `json:"cagr"`
	Sharpe         null.Float64 `json:"sharpe"`
	MaxDrawdownPct float64      `json:"max_drawdown_pct"`
	Volatility     float64      `json:"annualized_volatility"`
	DaySpan        float64      `json:"day_span"`
	TradeCount     int          `json:"trade_count"`
}

// Result is everything a run produces. The engine keeps no reference to it.
type Result struct {
	Params model.StrategyParams `json:"params"`
	Trades []model.Trade        `json:"trades"`
	Equity []model.EquityPoint  `json:"equity"`
	Stats  Stats                `json:"stats"`
}
