package backtest

import (
	"fmt"

	"github.com/volatiletech/null"

	"sma-backtest/internal/model"
	"sma-backtest/internal/signal"
)

// simulator fills crossover signals on the following bar's close and tracks a single
// all-or-nothing long position.
type simulator struct {
	params model.StrategyParams

	cash      float64
	position  float64
	entryCost float64 // value + commission of the open entry

	// skippedEntry is set when a BUY produced no quantity; the SELL paired with it
	// has nothing to close.
	skippedEntry bool

	trades []model.Trade
	equity []model.EquityPoint
}

func newSimulator(params model.StrategyParams) *simulator {
	return &simulator{
		params: params,
		cash:   params.InitialCapital,
	}
}

// run walks bars 0..N-2. A signal raised at bar i fills at bar i+1, and every bar
// from the second on gets one equity point after any fill on it.
func (s *simulator) run(bars []model.Bar, signals []signal.Signal) error {
	next := 0
	for i := 0; i < len(bars)-1; i++ {
		fillBar := bars[i+1]
		if next < len(signals) && signals[next].Index == i {
			if err := s.fill(signals[next], fillBar); err != nil {
				return err
			}
			next++
		}
		s.equity = append(s.equity, model.EquityPoint{
			Time:   fillBar.Time,
			Equity: s.cash + s.position*fillBar.Close,
		})
	}
	if next != len(signals) {
		return fmt.Errorf("%w: %d of %d signals were never filled (out of order or on the final bar)",
			ErrInvariantViolation, len(signals)-next, len(signals))
	}
	return nil
}

func (s *simulator) fill(sig signal.Signal, bar model.Bar) error {
	switch sig.Side {
	case model.SideBuy:
		return s.buy(sig.Index, bar)
	case model.SideSell:
		return s.sell(sig.Index, bar)
	default:
		return fmt.Errorf("%w: unknown signal side %q at bar %d", ErrInvariantViolation, sig.Side, sig.Index)
	}
}

func (s *simulator) buy(idx int, bar model.Bar) error {
	if s.position > 0 || s.skippedEntry {
		return fmt.Errorf("%w: BUY signal at bar %d while a position is open", ErrInvariantViolation, idx)
	}
	price := bar.Close * (1 + s.params.SlippagePct/100)
	qty := 0.0
	if price > 0 {
		qty = (s.cash * s.params.SizePercent / 100) / price
	}
	if !(qty > 0) {
		s.skippedEntry = true
		return nil
	}

	value := qty * price
	commission := value * s.params.CommissionPct / 100
	s.cash -= value + commission
	s.position = qty
	s.entryCost = value + commission

	s.trades = append(s.trades, model.Trade{
		Side:       model.SideBuy,
		Time:       bar.Time,
		Price:      price,
		Size:       qty,
		Value:      value,
		Commission: commission,
	})
	return nil
}

func (s *simulator) sell(idx int, bar model.Bar) error {
	if s.position == 0 {
		if s.skippedEntry {
			s.skippedEntry = false
			return nil
		}
		return fmt.Errorf("%w: SELL signal at bar %d with no open position", ErrInvariantViolation, idx)
	}
	price := bar.Close * (1 - s.params.SlippagePct/100)
	value := s.position * price
	commission := value * s.params.CommissionPct / 100
	proceeds := value - commission
	s.cash += proceeds

	s.trades = append(s.trades, model.Trade{
		Side:       model.SideSell,
		Time:       bar.Time,
		Price:      price,
		Size:       s.position,
		Value:      value,
		Commission: commission,
		PnL:        null.Float64From(proceeds - s.entryCost),
	})
	s.position = 0
	s.entryCost = 0
	return nil
}
