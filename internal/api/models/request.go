package models

import (
	"encoding/json"

	"sma-backtest/internal/model"
)

// BacktestRequest represents the request body for running a backtest.
// Params keys that are omitted keep their default values.
type BacktestRequest struct {
	DataSource DataSourceConfig     `json:"data_source"`
	Params     model.StrategyParams `json:"params"`
	Options    BacktestOptions      `json:"options,omitempty"`
}

// NewBacktestRequest returns a request pre-filled with default params, ready to be
// decoded into.
func NewBacktestRequest() BacktestRequest {
	return BacktestRequest{Params: model.DefaultParams()}
}

// DataSourceConfig defines where bars come from.
type DataSourceConfig struct {
	Type       string `json:"type" binding:"required,oneof=coingecko csv"`
	CoinID     string `json:"coin_id,omitempty"`
	VsCurrency string `json:"vs_currency,omitempty"` // default: "usd"
	Days       int    `json:"days,omitempty"`
	CSV        string `json:"csv,omitempty"` // inline CSV text for type=csv
}

// BacktestOptions contains optional backtest parameters.
type BacktestOptions struct {
	NominalDays   float64 `json:"nominal_days,omitempty"`
	IncludeTrades bool    `json:"include_trades,omitempty"`
	IncludeEquity bool    `json:"include_equity,omitempty"`
	// SkipStore runs without persisting the result.
	SkipStore bool `json:"skip_store,omitempty"`
}

// CompareBacktestRequest represents a request to compare parameter sets on one series.
type CompareBacktestRequest struct {
	DataSource DataSourceConfig     `json:"data_source"`
	BaseParams model.StrategyParams `json:"base_params"`
	Variations []BacktestVariation  `json:"variations,omitempty"`
	Grid       *GridRequest         `json:"grid,omitempty"`
	Options    BacktestOptions      `json:"options,omitempty"`
}

func NewCompareBacktestRequest() CompareBacktestRequest {
	return CompareBacktestRequest{BaseParams: model.DefaultParams()}
}

// BacktestVariation overrides some of the base params. Params is decoded on top of
// the base so only the keys present change.
type BacktestVariation struct {
	Name   string          `json:"name"`
	Params json.RawMessage `json:"params,omitempty"`
}

// GridRequest expands into every short/long pairing with short < long.
type GridRequest struct {
	Short RangeRequest `json:"short"`
	Long  RangeRequest `json:"long"`
}

type RangeRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
	Step int `json:"step,omitempty"` // default: 1
}
