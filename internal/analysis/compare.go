package analysis

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"sma-backtest/internal/backtest"
	"sma-backtest/internal/model"
)

// Variation is one parameter set to run against a shared series.
type Variation struct {
	Name   string               `json:"name"`
	Params model.StrategyParams `json:"params"`
}

// Outcome pairs a variation with its result or the error that stopped it.
type Outcome struct {
	Variation
	Result   *backtest.Result
	Err      error
	// Duration is the engine time for this variation; zero when it never started.
	Duration time.Duration
}

// Compare runs every variation against the same bars. Runs are independent, so they
// execute concurrently with at most limit in flight (GOMAXPROCS when limit <= 0).
// Outcomes come back in input order and a failing variation never cancels the others.
// Only ctx cancellation stops the batch early; unstarted variations then carry ctx.Err().
func Compare(ctx context.Context, bars []model.Bar, variations []Variation, opts backtest.Options, limit int) []Outcome {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	out := make([]Outcome, len(variations))
	engine := backtest.New()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, v := range variations {
		i, v := i, v
		out[i].Variation = v
		if out[i].Name == "" {
			out[i].Name = fmt.Sprintf("sma_%d_%d", v.Params.ShortPeriod, v.Params.LongPeriod)
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			start := time.Now()
			out[i].Result, out[i].Err = engine.Run(bars, v.Params, opts)
			out[i].Duration = time.Since(start)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Grid expands short and long period lists into every valid pairing on top of base.
// Pairs with short >= long are skipped.
func Grid(base model.StrategyParams, shorts, longs []int) []Variation {
	var out []Variation
	for _, s := range shorts {
		for _, l := range longs {
			if s < 1 || s >= l {
				continue
			}
			p := base
			p.ShortPeriod = s
			p.LongPeriod = l
			out = append(out, Variation{Name: fmt.Sprintf("sma_%d_%d", s, l), Params: p})
		}
	}
	return out
}

// RangeLen is the number of values Range(from, to, step) yields, saturating at
// math.MaxInt. It never allocates, so callers can bound a request before expanding it.
func RangeLen(from, to, step int) int {
	if step <= 0 || to < from {
		return 0
	}
	// to >= from, so the unsigned difference is exact even when to-from overflows int.
	q := (uint64(to) - uint64(from)) / uint64(step)
	if q >= math.MaxInt {
		return math.MaxInt
	}
	return int(q) + 1
}

// Range returns from, from+step, ... up to and including to.
func Range(from, to, step int) []int {
	n := RangeLen(from, to, step)
	if n == 0 {
		return nil
	}
	out := make([]int, 0, min(n, 1024))
	for v := from; ; v += step {
		out = append(out, v)
		// Stop before v+step could pass to (or wrap past math.MaxInt).
		if uint64(to)-uint64(v) < uint64(step) {
			break
		}
	}
	return out
}
