package backtest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/volatiletech/null"

	"sma-backtest/internal/model"
)

var (
	tradesHeader = []string{"side", "timestamp_iso", "price", "size", "value", "commission", "pnl"}
	equityHeader = []string{"timestamp_iso", "equity"}
)

// ErrBadExport is returned when a trades or equity export cannot be parsed back.
var ErrBadExport = errors.New("malformed export")

// WriteTradesCSV writes trades in the export format. Numbers use the shortest
// representation that parses back to the same float64.
func WriteTradesCSV(w io.Writer, trades []model.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradesHeader); err != nil {
		return err
	}
	for _, t := range trades {
		pnl := ""
		if t.PnL.Valid {
			pnl = fmtFloat(t.PnL.Float64)
		}
		row := []string{
			string(t.Side),
			fmtTime(t.Time),
			fmtFloat(t.Price),
			fmtFloat(t.Size),
			fmtFloat(t.Value),
			fmtFloat(t.Commission),
			pnl,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV writes the equity curve in the export format.
func WriteEquityCSV(w io.Writer, equity []model.EquityPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(equityHeader); err != nil {
		return err
	}
	for _, p := range equity {
		if err := cw.Write([]string{fmtTime(p.Time), fmtFloat(p.Equity)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTradesFile creates path (and its directory) and writes the trades export.
func WriteTradesFile(path string, trades []model.Trade) error {
	return writeFile(path, func(w io.Writer) error { return WriteTradesCSV(w, trades) })
}

// WriteEquityFile creates path (and its directory) and writes the equity export.
func WriteEquityFile(path string, equity []model.EquityPoint) error {
	return writeFile(path, func(w io.Writer) error { return WriteEquityCSV(w, equity) })
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadTradesCSV parses a trades export.
func ReadTradesCSV(r io.Reader) ([]model.Trade, error) {
	rows, err := readExport(r, tradesHeader)
	if err != nil {
		return nil, err
	}
	out := make([]model.Trade, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		side := model.Side(strings.ToUpper(strings.TrimSpace(row[0])))
		if side != model.SideBuy && side != model.SideSell {
			return nil, fmt.Errorf("%w: line %d: unknown side %q", ErrBadExport, line, row[0])
		}
		ts, err := parseTime(row[1])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadExport, line, err)
		}
		nums := make([]float64, 4)
		for j := range nums {
			if nums[j], err = strconv.ParseFloat(strings.TrimSpace(row[2+j]), 64); err != nil {
				return nil, fmt.Errorf("%w: line %d column %s: %v", ErrBadExport, line, tradesHeader[2+j], err)
			}
		}
		t := model.Trade{
			Side:       side,
			Time:       ts,
			Price:      nums[0],
			Size:       nums[1],
			Value:      nums[2],
			Commission: nums[3],
		}
		if s := strings.TrimSpace(row[6]); s != "" {
			pnl, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column pnl: %v", ErrBadExport, line, err)
			}
			t.PnL = null.Float64From(pnl)
		}
		out = append(out, t)
	}
	return out, nil
}

// ReadEquityCSV parses an equity export.
func ReadEquityCSV(r io.Reader) ([]model.EquityPoint, error) {
	rows, err := readExport(r, equityHeader)
	if err != nil {
		return nil, err
	}
	out := make([]model.EquityPoint, 0, len(rows))
	for i, row := range rows {
		ts, err := parseTime(row[0])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadExport, i+2, err)
		}
		eq, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d column equity: %v", ErrBadExport, i+2, err)
		}
		out = append(out, model.EquityPoint{Time: ts, Equity: eq})
	}
	return out, nil
}

func readExport(r io.Reader, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadExport, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: missing header", ErrBadExport)
	}
	for i, h := range header {
		if !strings.EqualFold(strings.TrimSpace(rows[0][i]), h) {
			return nil, fmt.Errorf("%w: header column %d is %q, want %q", ErrBadExport, i, rows[0][i], h)
		}
	}
	return rows[1:], nil
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
