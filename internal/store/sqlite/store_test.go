package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sma-backtest/internal/backtest"
	"sma-backtest/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func referenceResult(t *testing.T) *backtest.Result {
	t.Helper()
	closes := []float64{100, 101, 99, 105, 110, 90, 95, 120, 130, 80}
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{Time: day.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	res, err := backtest.New().Run(bars, model.StrategyParams{
		ShortPeriod:    2,
		LongPeriod:     3,
		InitialCapital: 1000,
		SizePercent:    100,
	}, backtest.Options{})
	require.NoError(t, err)
	require.Len(t, res.Trades, 3)
	return res
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	res := referenceResult(t)

	run := &Run{Source: "csv", Symbol: "TEST", Bars: 10, Result: res}
	require.NoError(t, s.SaveRun(ctx, run))
	require.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "csv", got.Source)
	assert.Equal(t, "TEST", got.Symbol)
	assert.Equal(t, 10, got.Bars)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, res.Params, got.Result.Params)
	assert.Equal(t, res.Stats, got.Result.Stats)
	assert.Equal(t, res.Trades, got.Result.Trades)
	assert.Equal(t, res.Equity, got.Result.Equity)

	assert.False(t, got.Result.Trades[0].PnL.Valid)
	assert.True(t, got.Result.Trades[1].PnL.Valid)
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteRun(context.Background(), "missing"), ErrNotFound)
}

func TestDuplicateIDRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	res := referenceResult(t)

	require.NoError(t, s.SaveRun(ctx, &Run{ID: "fixed", Source: "csv", Result: res}))
	assert.Error(t, s.SaveRun(ctx, &Run{ID: "fixed", Source: "csv", Result: res}))

	got, err := s.GetRun(ctx, "fixed")
	require.NoError(t, err)
	assert.Len(t, got.Result.Trades, 3)
}

func TestListAndDeleteRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	res := referenceResult(t)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveRun(ctx, &Run{
			ID:        string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Source:    "coingecko",
			Result:    res,
		}))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, res.Stats, runs[0].Stats)

	require.NoError(t, s.DeleteRun(ctx, "c"))
	_, err = s.GetRun(ctx, "c")
	assert.ErrorIs(t, err, ErrNotFound)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM trades WHERE run_id = 'c'`).Scan(&n))
	assert.Zero(t, n)
}

func TestSaveRunRejectsNil(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.SaveRun(context.Background(), nil))
	assert.Error(t, s.SaveRun(context.Background(), &Run{}))
}

func TestNewRunID(t *testing.T) {
	a, err := NewRunID()
	require.NoError(t, err)
	b, err := NewRunID()
	require.NoError(t, err)
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
