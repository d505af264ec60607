package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"sma-backtest/internal/model"
)

// ErrNoBars is returned when a CSV yields no usable rows.
var ErrNoBars = errors.New("no bars parsed")

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006",
}

// ParseBarsCSV reads tabular OHLCV text. Header names are matched case-insensitively:
// timestamp (or time, date, timestamp_iso; first column otherwise), open, high, low,
// close (or price) and volume. Missing open/high/low default to close and a missing
// volume to 0. Rows whose timestamp or close cannot be parsed are skipped. The result
// is sorted by time but not otherwise validated.
func ParseBarsCSV(r io.Reader) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty input", ErrNoBars)
	}
	if err != nil {
		return nil, err
	}
	cols := map[string]int{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	col := func(names ...string) int {
		for _, n := range names {
			if i, ok := cols[n]; ok {
				return i
			}
		}
		return -1
	}

	tIdx := col("timestamp", "time", "date", "timestamp_iso")
	if tIdx < 0 {
		tIdx = 0
	}
	cIdx := col("close", "price")
	if cIdx < 0 {
		return nil, fmt.Errorf("csv header %v has no close column", header)
	}
	oIdx, hIdx, lIdx, vIdx := col("open"), col("high"), col("low"), col("volume")

	var bars []model.Bar
	skipped := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		ts, err := parseTimestamp(field(rec, tIdx))
		if err != nil {
			skipped++
			continue
		}
		closePx, err := strconv.ParseFloat(field(rec, cIdx), 64)
		if err != nil {
			skipped++
			continue
		}
		bars = append(bars, model.Bar{
			Time:   ts,
			Open:   optFloat(rec, oIdx, closePx),
			High:   optFloat(rec, hIdx, closePx),
			Low:    optFloat(rec, lIdx, closePx),
			Close:  closePx,
			Volume: optFloat(rec, vIdx, 0),
		})
	}
	if skipped > 0 {
		log.Debug().Str("component", "csv").Int("skipped", skipped).Int("parsed", len(bars)).Msg("skipped unparsable rows")
	}
	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// WriteBarsCSV writes bars with the header ParseBarsCSV understands.
func WriteBarsCSV(w io.Writer, bars []model.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		row := []string{
			b.Time.UTC().Format(time.RFC3339Nano),
			fmtFloat(b.Open),
			fmtFloat(b.High),
			fmtFloat(b.Low),
			fmtFloat(b.Close),
			fmtFloat(b.Volume),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func optFloat(rec []string, i int, def float64) float64 {
	s := field(rec, i)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

// parseTimestamp accepts the layouts in timeLayouts and unix epochs in seconds or
// milliseconds.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e11 || n < -1e11 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
