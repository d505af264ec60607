package backtest

import (
	"fmt"

	"sma-backtest/internal/indicator"
	"sma-backtest/internal/model"
	"sma-backtest/internal/signal"
)

// DefaultNominalDays is the backtest length used for CAGR when the equity curve
// spans no calendar time.
const DefaultNominalDays = 30

// Options tunes a run without changing the strategy.
type Options struct {
	// NominalDays replaces the measured day span when that span is not positive.
	NominalDays float64
}

type Engine struct{}

func New() *Engine { return &Engine{} }

// Run executes an SMA crossover backtest over a complete, ordered bar series.
// Params are validated before the bars are inspected. Run has no side effects and is
// safe to call concurrently.
func (e *Engine) Run(bars []model.Bar, params model.StrategyParams, opts Options) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if opts.NominalDays <= 0 {
		opts.NominalDays = DefaultNominalDays
	}
	if len(bars) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 bars, got %d", ErrInsufficientData, len(bars))
	}
	if len(bars) < params.LongPeriod {
		return nil, fmt.Errorf("%w: long_period %d needs at least %d bars, got %d",
			ErrInsufficientData, params.LongPeriod, params.LongPeriod, len(bars))
	}
	if err := model.ValidateBars(bars); err != nil {
		return nil, err
	}

	closes := model.Closes(bars)
	short, err := indicator.SMA(closes, params.ShortPeriod)
	if err != nil {
		return nil, fmt.Errorf("short sma: %w", err)
	}
	long, err := indicator.SMA(closes, params.LongPeriod)
	if err != nil {
		return nil, fmt.Errorf("long sma: %w", err)
	}
	signals, err := signal.Generate(short, long)
	if err != nil {
		return nil, err
	}

	sim := newSimulator(params)
	if err := sim.run(bars, signals); err != nil {
		return nil, err
	}

	last := bars[len(bars)-1]
	finalEquity := sim.cash + sim.position*last.Close

	return &Result{
		Params: params,
		Trades: sim.trades,
		Equity: sim.equity,
		Stats:  computeStats(sim.equity, params.InitialCapital, finalEquity, len(sim.trades), opts.NominalDays),
	}, nil
}
