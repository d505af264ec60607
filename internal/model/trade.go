package model

import (
	"time"

	"github.com/volatiletech/null"
)

// Side is the direction of a simulated fill.
// Keep these values stable; they are written to CSV exports.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is one simulated fill. PnL is only set on SELL trades.
type Trade struct {
	Side       Side         `json:"side"`
	Time       time.Time    `json:"timestamp"`
	Price      float64      `json:"price"`
	Size       float64      `json:"size"`
	Value      float64      `json:"value"`
	Commission float64      `json:"commission"`
	PnL        null.Float64 `json:"pnl"`
}

// EquityPoint is the marked-to-market account value at one bar close.
type EquityPoint struct {
	Time   time.Time `json:"timestamp"`
	Equity float64   `json:"equity"`
}
