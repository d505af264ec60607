package models

import (
	"time"

	"github.com/volatiletech/null"

	"sma-backtest/internal/analysis"
	"sma-backtest/internal/backtest"
	"sma-backtest/internal/model"
)

// BacktestResponse represents the response from a backtest run.
type BacktestResponse struct {
	ID        string               `json:"id,omitempty"`
	Status    string               `json:"status"`
	CreatedAt time.Time            `json:"created_at,omitempty"`
	Source    string               `json:"source"`
	Symbol    string               `json:"symbol,omitempty"`
	Bars      int                  `json:"bars"`
	Window    TimeWindow           `json:"window"`
	Params    model.StrategyParams `json:"params"`
	Stats     backtest.Stats       `json:"stats"`
	Benchmark *analysis.Profile    `json:"benchmark,omitempty"`
	Trades    []model.Trade        `json:"trades,omitempty"`
	Equity    []model.EquityPoint  `json:"equity,omitempty"`
}

// TimeWindow represents a time range.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CompareBacktestResponse represents the response from a comparison.
type CompareBacktestResponse struct {
	Source     string             `json:"source"`
	Bars       int                `json:"bars"`
	Window     TimeWindow         `json:"window"`
	Benchmark  analysis.Profile   `json:"benchmark"`
	Best       string             `json:"best,omitempty"`
	Comparison []ComparisonResult `json:"comparison"`
}

// ComparisonResult contains results for one variation, ranked by total return.
// Failed variations carry Error instead of Stats.
type ComparisonResult struct {
	Rank   int                  `json:"rank,omitempty"`
	Name   string               `json:"name"`
	Status string               `json:"status"`
	Params model.StrategyParams `json:"params"`
	Stats  *backtest.Stats      `json:"stats,omitempty"`
	Error  *ErrorDetail         `json:"error,omitempty"`
}

// PriceResponse mirrors the simple-price proxy payload.
type PriceResponse struct {
	Source string                        `json:"source"` // "cache" or "api"
	Data   map[string]map[string]float64 `json:"data"`
}

// StrategyInfo represents information about a strategy.
type StrategyInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ParameterInfo `json:"parameters"`
}

// ParameterInfo describes a strategy parameter.
type ParameterInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
}

// CoinInfo represents a fetchable coin.
type CoinInfo struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Rank   int    `json:"market_cap_rank,omitempty"`
}

// CoinDetailResponse is the coin detail payload. Price is quoted in VsCurrency, which
// falls back to usd when the requested currency is unknown.
type CoinDetailResponse struct {
	Source       string       `json:"source"` // "cache" or "api"
	ID           string       `json:"id"`
	Symbol       string       `json:"symbol"`
	Name         string       `json:"name"`
	Rank         int          `json:"market_cap_rank,omitempty"`
	Image        string       `json:"image,omitempty"`
	VsCurrency   string       `json:"vs_currency,omitempty"`
	Price        null.Float64 `json:"price"`
	Change24hPct null.Float64 `json:"price_change_percentage_24h"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// PresetInfo represents a strategy parameter file shipped with the service.
type PresetInfo struct {
	ID     string               `json:"id"`
	File   string               `json:"file"`
	Params model.StrategyParams `json:"params"`
}
