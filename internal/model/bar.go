package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidBars is returned when a bar series breaks its ordering or price invariants.
var ErrInvalidBars = errors.New("invalid bar series")

// Bar is one OHLCV record of a normalized price series.
// Prices are in quote currency units; Volume is whatever the source reports (0 when unknown).
type Bar struct {
	Time   time.Time `json:"timestamp"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// ValidateBars checks that timestamps are strictly increasing and every close is a
// finite, non-negative number.
func ValidateBars(bars []Bar) error {
	for i, b := range bars {
		if b.Time.IsZero() {
			return fmt.Errorf("%w: bar %d has no timestamp", ErrInvalidBars, i)
		}
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) || b.Close < 0 {
			return fmt.Errorf("%w: bar %d close %v is not a finite non-negative price", ErrInvalidBars, i, b.Close)
		}
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return fmt.Errorf("%w: bar %d timestamp %s is not after %s",
				ErrInvalidBars, i, b.Time.Format(time.RFC3339), bars[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Closes extracts the close column.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
