package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sma-backtest/internal/model"
	"sma-backtest/internal/signal"
)

func TestSimulatorSellWhileFlatFails(t *testing.T) {
	t.Parallel()
	sim := newSimulator(referenceParams())
	err := sim.run(dailyBars(1, 2, 3), []signal.Signal{{Index: 0, Side: model.SideSell}})
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestSimulatorDoubleBuyFails(t *testing.T) {
	t.Parallel()
	sim := newSimulator(referenceParams())
	err := sim.run(dailyBars(1, 2, 3, 4), []signal.Signal{
		{Index: 0, Side: model.SideBuy},
		{Index: 1, Side: model.SideBuy},
	})
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestSimulatorSignalOnFinalBarFails(t *testing.T) {
	t.Parallel()
	sim := newSimulator(referenceParams())
	err := sim.run(dailyBars(1, 2, 3), []signal.Signal{{Index: 2, Side: model.SideBuy}})
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestSimulatorUnknownSideFails(t *testing.T) {
	t.Parallel()
	sim := newSimulator(referenceParams())
	err := sim.run(dailyBars(1, 2, 3), []signal.Signal{{Index: 0, Side: "HOLD"}})
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestSimulatorSkippedEntryConsumesExit(t *testing.T) {
	t.Parallel()
	p := referenceParams()
	p.SizePercent = 0
	sim := newSimulator(p)
	err := sim.run(dailyBars(1, 2, 3, 4), []signal.Signal{
		{Index: 0, Side: model.SideBuy},
		{Index: 1, Side: model.SideSell},
	})
	require.NoError(t, err)
	assert.Empty(t, sim.trades)
	assert.False(t, sim.skippedEntry)

	// a second BUY while the skipped entry is still pending is still a fault
	sim = newSimulator(p)
	err = sim.run(dailyBars(1, 2, 3, 4), []signal.Signal{
		{Index: 0, Side: model.SideBuy},
		{Index: 1, Side: model.SideBuy},
	})
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestSimulatorOpenPositionAtEnd(t *testing.T) {
	t.Parallel()
	sim := newSimulator(referenceParams())
	require.NoError(t, sim.run(dailyBars(10, 20, 40), []signal.Signal{{Index: 0, Side: model.SideBuy}}))

	require.Len(t, sim.trades, 1)
	assert.InDelta(t, 50.0, sim.position, 1e-12)
	require.Len(t, sim.equity, 2)
	assert.InDelta(t, 1000, sim.equity[0].Equity, 1e-9)
	assert.InDelta(t, 2000, sim.equity[1].Equity, 1e-9)
}
