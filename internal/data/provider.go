package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sma-backtest/internal/model"
)

// MaxBars caps the length of a series a provider will hand to the engine.
const MaxBars = 10000

var ErrTooManyBars = fmt.Errorf("series longer than %d bars", MaxBars)

// Source error codes.
const (
	CodeRateLimited  = "RATE_LIMIT_EXCEEDED"
	CodeNotFound     = "NOT_FOUND"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeAPIError     = "API_ERROR"
	CodeDecodeError  = "DECODE_ERROR"
	CodeReadError    = "READ_ERROR"
	CodeInvalidData  = "INVALID_DATA"
)

// SourceError reports a failure to acquire market data. It is kept apart from the
// engine's own errors so callers can tell "no data" from "bad run".
type SourceError struct {
	Source     string
	StatusCode int
	Code       string
	Message    string
	RetryAfter string
	Err        error
}

func (e *SourceError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Source, msg)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// IsSourceError reports whether err carries a *SourceError and returns it.
func IsSourceError(err error) (*SourceError, bool) {
	var se *SourceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Provider yields a complete, validated bar series.
type Provider interface {
	Bars(ctx context.Context) ([]model.Bar, error)
	Source() string
}

// finish applies the checks every provider shares before bars leave the package.
func finish(source string, bars []model.Bar) ([]model.Bar, error) {
	if len(bars) > MaxBars {
		return nil, &SourceError{Source: source, Code: CodeInvalidData, Err: fmt.Errorf("%w: got %d", ErrTooManyBars, len(bars))}
	}
	if err := model.ValidateBars(bars); err != nil {
		return nil, &SourceError{Source: source, Code: CodeInvalidData, Err: err}
	}
	return bars, nil
}

// FileProvider reads bars from disk. Files ending in .json are read as a saved
// market_chart response and aggregated to daily bars; anything else is parsed as CSV.
type FileProvider struct {
	Path string
}

func (p FileProvider) Source() string { return "file" }

func (p FileProvider) Bars(ctx context.Context) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(p.Path), ".json") {
		points, err := LoadMarketChartJSON(p.Path)
		if err != nil {
			return nil, &SourceError{Source: p.Source(), Code: CodeDecodeError, Message: fmt.Sprintf("read %s: %v", p.Path, err), Err: err}
		}
		return finish(p.Source(), AggregatePrices(points, BucketDaily))
	}

	f, err := os.Open(p.Path)
	if err != nil {
		return nil, &SourceError{Source: p.Source(), Code: CodeReadError, Message: err.Error(), Err: err}
	}
	defer f.Close()
	return ReaderProvider{Name: p.Source(), R: f}.Bars(ctx)
}

// ReaderProvider parses CSV from an arbitrary reader, such as an uploaded body.
type ReaderProvider struct {
	Name string
	R    io.Reader
}

func (p ReaderProvider) Source() string {
	if p.Name == "" {
		return "csv"
	}
	return p.Name
}

func (p ReaderProvider) Bars(ctx context.Context) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bars, err := ParseBarsCSV(p.R)
	if err != nil {
		code := CodeDecodeError
		if errors.Is(err, ErrNoBars) {
			code = CodeInvalidData
		}
		return nil, &SourceError{Source: p.Source(), Code: code, Err: err}
	}
	return finish(p.Source(), bars)
}

// CoinGeckoProvider fetches a market chart and aggregates it into bars. Windows of a
// day or less become hourly bars.
type CoinGeckoProvider struct {
	Client *CoinGeckoClient
	Params MarketChartParams
}

func (p CoinGeckoProvider) Source() string { return "coingecko" }

func (p CoinGeckoProvider) Bars(ctx context.Context) ([]model.Bar, error) {
	points, err := p.Client.MarketChart(ctx, p.Params)
	if err != nil {
		return nil, err
	}
	bars := AggregatePrices(points, BucketForDays(float64(p.Params.Days)))
	return finish(p.Source(), bars)
}

// StaticProvider serves an in-memory series. Used for demos and tests.
type StaticProvider struct {
	Name  string
	Items []model.Bar
}

func (p StaticProvider) Source() string {
	if p.Name == "" {
		return "static"
	}
	return p.Name
}

func (p StaticProvider) Bars(ctx context.Context) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]model.Bar, len(p.Items))
	copy(out, p.Items)
	return finish(p.Source(), out)
}

// Window is a convenience for describing the time range a series covers.
func Window(bars []model.Bar) (time.Time, time.Time) {
	if len(bars) == 0 {
		return time.Time{}, time.Time{}
	}
	return bars[0].Time, bars[len(bars)-1].Time
}
