package data

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sma-backtest/internal/model"
)

func TestReaderProvider(t *testing.T) {
	in := "timestamp,close\n2024-01-01,1\n2024-01-02,2\n2024-01-03,3\n"
	bars, err := ReaderProvider{R: strings.NewReader(in)}.Bars(context.Background())
	require.NoError(t, err)
	assert.Len(t, bars, 3)
	assert.Equal(t, "csv", ReaderProvider{}.Source())
}

func TestReaderProviderDuplicateTimestamps(t *testing.T) {
	in := "timestamp,close\n2024-01-01,1\n2024-01-01,2\n"
	_, err := ReaderProvider{Name: "upload", R: strings.NewReader(in)}.Bars(context.Background())
	se, ok := IsSourceError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidData, se.Code)
	assert.Equal(t, "upload", se.Source)
	assert.True(t, errors.Is(err, model.ErrInvalidBars))
}

func TestReaderProviderEmpty(t *testing.T) {
	_, err := ReaderProvider{R: strings.NewReader("timestamp,close\n")}.Bars(context.Background())
	se, ok := IsSourceError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidData, se.Code)
	assert.ErrorIs(t, err, ErrNoBars)
}

func TestFileProviderCSVAndJSON(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "bars.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("date,close\n2024-01-01,10\n2024-01-02,11\n"), 0644))
	bars, err := FileProvider{Path: csvPath}.Bars(context.Background())
	require.NoError(t, err)
	assert.Len(t, bars, 2)

	jsonPath := filepath.Join(dir, "chart.JSON")
	require.NoError(t, os.WriteFile(jsonPath, []byte(chartBody(4, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))), 0644))
	bars, err = FileProvider{Path: jsonPath}.Bars(context.Background())
	require.NoError(t, err)
	require.Len(t, bars, 4)
	assert.Equal(t, 103.0, bars[3].Close)
	assert.Equal(t, 4000.0, bars[3].Volume)
}

func TestFileProviderMissing(t *testing.T) {
	_, err := FileProvider{Path: filepath.Join(t.TempDir(), "missing.csv")}.Bars(context.Background())
	se, ok := IsSourceError(err)
	require.True(t, ok)
	assert.Equal(t, CodeReadError, se.Code)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCoinGeckoProvider(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartBody(30, start))
	}, nil)

	p := CoinGeckoProvider{Client: client, Params: MarketChartParams{CoinID: "bitcoin", VsCurrency: "usd", Days: 30}}
	bars, err := p.Bars(context.Background())
	require.NoError(t, err)
	require.Len(t, bars, 30)
	assert.Equal(t, 100.0, bars[0].Close)
	assert.Equal(t, 129.0, bars[29].Close)
	assert.NoError(t, model.ValidateBars(bars))
}

func TestCoinGeckoProviderPassesSourceErrors(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, nil)
	_, err := CoinGeckoProvider{Client: client, Params: MarketChartParams{CoinID: "nope", Days: 10}}.Bars(context.Background())
	se, ok := IsSourceError(err)
	require.True(t, ok)
	assert.Equal(t, CodeNotFound, se.Code)
}

func TestStaticProviderCapsLength(t *testing.T) {
	bars := make([]model.Bar, MaxBars+1)
	for i := range bars {
		bars[i] = model.Bar{Time: time.Unix(int64(i)*60, 0).UTC(), Close: 1}
	}
	_, err := StaticProvider{Items: bars}.Bars(context.Background())
	assert.ErrorIs(t, err, ErrTooManyBars)

	got, err := StaticProvider{Items: bars[:10]}.Bars(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 10)

	first, last := Window(got)
	assert.Equal(t, bars[0].Time, first)
	assert.Equal(t, bars[9].Time, last)
}

func TestSourceErrorMessage(t *testing.T) {
	err := &SourceError{Source: "coingecko", Code: CodeNotFound, Message: "coin or currency not found"}
	assert.Equal(t, "coingecko: coin or currency not found", err.Error())

	wrapped := &SourceError{Source: "csv", Err: ErrNoBars}
	assert.Equal(t, "csv: no bars parsed", wrapped.Error())
	assert.ErrorIs(t, wrapped, ErrNoBars)
}
