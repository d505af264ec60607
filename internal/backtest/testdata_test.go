package backtest

import (
	"math/rand"
	"time"

	"sma-backtest/internal/model"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// dailyBars builds one bar per calendar day with the given closes.
func dailyBars(closes ...float64) []model.Bar {
	out := make([]model.Bar, len(closes))
	for i, c := range closes {
		out[i] = model.Bar{
			Time:  day0.AddDate(0, 0, i),
			Open:  c,
			High:  c,
			Low:   c,
			Close: c,
		}
	}
	return out
}

// randomWalk returns n daily bars following a multiplicative random walk.
func randomWalk(rng *rand.Rand, n int) []model.Bar {
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		price *= 1 + (rng.Float64()-0.5)*0.08
		closes[i] = price
	}
	return dailyBars(closes...)
}

func referenceParams() model.StrategyParams {
	return model.StrategyParams{
		ShortPeriod:    2,
		LongPeriod:     3,
		InitialCapital: 1000,
		SizePercent:    100,
	}
}
