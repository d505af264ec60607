// Package signal turns a pair of moving-average series into entry and exit signals.
//
// The crossover is a two-state machine: FLAT (initial) and LONG. FLAT moves to LONG
// when the short average is strictly above the long one, LONG moves back to FLAT when
// it is strictly below. Equal averages never change state.
package signal

import (
	"fmt"

	"sma-backtest/internal/indicator"
	"sma-backtest/internal/model"
)

// State is the position state tracked by the crossover machine.
type State int

const (
	Flat State = iota
	Long
)

func (s State) String() string {
	switch s {
	case Flat:
		return "FLAT"
	case Long:
		return "LONG"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Signal is a pending order produced at bar Index. It is filled on bar Index+1.
type Signal struct {
	Index int
	Side  model.Side
}

// Crossover holds the machine state between bars.
type Crossover struct {
	state State
}

// NewCrossover returns a machine in the FLAT state.
func NewCrossover() *Crossover {
	return &Crossover{state: Flat}
}

// State returns the current state.
func (c *Crossover) State() State { return c.state }

// Step feeds the averages of one bar. It returns the side of the emitted signal and
// true when a transition happened.
func (c *Crossover) Step(short, long float64) (model.Side, bool) {
	switch c.state {
	case Flat:
		if short > long {
			c.state = Long
			return model.SideBuy, true
		}
	case Long:
		if short < long {
			c.state = Flat
			return model.SideSell, true
		}
	}
	return "", false
}

// Generate runs the machine over two aligned series and returns the pending signals
// in bar order. Bars where either series is still warming up are skipped, and the
// final bar never emits since there is no following bar to fill on.
func Generate(short, long indicator.Series) ([]Signal, error) {
	if len(short) != len(long) {
		return nil, fmt.Errorf("series length mismatch: short=%d long=%d", len(short), len(long))
	}
	m := NewCrossover()
	var out []Signal
	for i := 0; i < len(short)-1; i++ {
		if !short.Defined(i) || !long.Defined(i) {
			continue
		}
		if side, ok := m.Step(short.At(i), long.At(i)); ok {
			out = append(out, Signal{Index: i, Side: side})
		}
	}
	return out, nil
}
