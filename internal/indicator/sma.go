// Package indicator computes technical indicator series over close prices.
//
// Series are aligned index-for-index with their input; warm-up entries are
// null (Valid=false) rather than zero.
package indicator

import (
	"errors"
	"fmt"

	"github.com/volatiletech/null"
)

// ErrInsufficientData is returned when a series is shorter than the requested window.
var ErrInsufficientData = errors.New("insufficient data")

// Series is an indicator output aligned with the price input.
type Series []null.Float64

// Defined reports whether entry i exists and is past the warm-up.
func (s Series) Defined(i int) bool {
	return i >= 0 && i < len(s) && s[i].Valid
}

// At returns entry i; callers check Defined first.
func (s Series) At(i int) float64 {
	return s[i].Float64
}

// SMA returns the simple moving average of values over period.
// Entries before index period-1 are undefined.
func SMA(values []float64, period int) (Series, error) {
	if period < 1 {
		return nil, fmt.Errorf("sma period must be >= 1 (got %d)", period)
	}
	if len(values) < period {
		return nil, fmt.Errorf("%w: sma(%d) needs %d values, got %d", ErrInsufficientData, period, period, len(values))
	}

	out := make(Series, len(values))
	p := float64(period)
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			// drop the value leaving the window
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = null.Float64From(sum / p)
		}
	}
	return out, nil
}
