package data

import (
	"encoding/json"
	"io"
	"os"
)

// LoadMarketChartJSON reads a market_chart response saved to disk.
func LoadMarketChartJSON(path string) ([]PricePoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeMarketChart(f)
}

// DecodeMarketChart decodes a market_chart body into price samples.
func DecodeMarketChart(r io.Reader) ([]PricePoint, error) {
	var resp marketChartResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, err
	}
	if len(resp.Prices) == 0 {
		return nil, ErrNoBars
	}
	return resp.points(), nil
}
