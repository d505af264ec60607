package data

import (
	"math"
	"sort"
	"time"

	"sma-backtest/internal/model"
)

// PricePoint is one raw sample of a price time series.
type PricePoint struct {
	Time   time.Time
	Price  float64
	Volume float64
}

// Bucket is the bar width used when aggregating raw prices.
type Bucket int

const (
	BucketDaily Bucket = iota
	BucketHourly
)

func (b Bucket) String() string {
	if b == BucketHourly {
		return "hourly"
	}
	return "daily"
}

// BucketForDays picks hourly bars for windows of a day or less, daily otherwise.
func BucketForDays(days float64) Bucket {
	if days <= 1 {
		return BucketHourly
	}
	return BucketDaily
}

func (b Bucket) key(t time.Time) time.Time {
	t = t.UTC()
	if b == BucketHourly {
		return t.Truncate(time.Hour)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AggregatePrices groups samples into fixed UTC buckets. Each bar is stamped with the
// time of its first sample; open is the first price, close the last, high/low the
// extremes, volume the last reported volume. Samples with a negative or non-finite
// price are dropped.
func AggregatePrices(points []PricePoint, b Bucket) []model.Bar {
	sorted := make([]PricePoint, 0, len(points))
	for _, p := range points {
		if p.Time.IsZero() || math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price < 0 {
			continue
		}
		sorted = append(sorted, p)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	var out []model.Bar
	var cur time.Time
	for _, p := range sorted {
		k := b.key(p.Time)
		if len(out) == 0 || !k.Equal(cur) {
			cur = k
			out = append(out, model.Bar{
				Time:   p.Time,
				Open:   p.Price,
				High:   p.Price,
				Low:    p.Price,
				Close:  p.Price,
				Volume: p.Volume,
			})
			continue
		}
		bar := &out[len(out)-1]
		bar.High = math.Max(bar.High, p.Price)
		bar.Low = math.Min(bar.Low, p.Price)
		bar.Close = p.Price
		bar.Volume = p.Volume
	}
	return out
}
