package data

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sma-backtest/internal/model"
)

func TestParseBarsCSV(t *testing.T) {
	in := "Timestamp,Open,High,Low,Close,Volume\n" +
		"2024-01-02,101,102,100,101.5,10\n" +
		"2024-01-01,100,101,99,100.5,5\n"
	bars, err := ParseBarsCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), bars[0].Time)
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Equal(t, 99.0, bars[0].Low)
	assert.Equal(t, 10.0, bars[1].Volume)
}

func TestParseBarsCSVCloseOnly(t *testing.T) {
	in := "\ufefftime,price\n" +
		"1704067200,42\n" +
		"1704153600000,43\n"
	bars, err := ParseBarsCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 2)

	b := bars[0]
	assert.Equal(t, 42.0, b.Open)
	assert.Equal(t, 42.0, b.High)
	assert.Equal(t, 42.0, b.Low)
	assert.Equal(t, 0.0, b.Volume)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[1].Time)
}

func TestParseBarsCSVSkipsBadRows(t *testing.T) {
	in := "timestamp,close\n" +
		"2024-01-01,1\n" +
		"not-a-date,2\n" +
		"2024-01-03,abc\n" +
		"# comment\n" +
		"2024-01-04,4\n"
	bars, err := ParseBarsCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 4.0, bars[1].Close)
}

func TestParseBarsCSVErrors(t *testing.T) {
	_, err := ParseBarsCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoBars)

	_, err = ParseBarsCSV(strings.NewReader("timestamp,close\n"))
	assert.ErrorIs(t, err, ErrNoBars)

	_, err = ParseBarsCSV(strings.NewReader("timestamp,open\n2024-01-01,1\n"))
	assert.Error(t, err)
}

func TestWriteBarsCSVRoundTrip(t *testing.T) {
	d := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	bars := []model.Bar{
		{Time: d, Open: 1, High: 2, Low: 0.5, Close: 1.25, Volume: 100},
		{Time: d.Add(24 * time.Hour), Open: 1.25, High: 1.5, Low: 1, Close: 1.1, Volume: 0},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteBarsCSV(&buf, bars))
	assert.True(t, strings.HasPrefix(buf.String(), "timestamp,open,high,low,close,volume\n"))

	got, err := ParseBarsCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, bars, got)
}
