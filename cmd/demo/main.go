package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"sma-backtest/internal/backtest"
	"sma-backtest/internal/data"
	"sma-backtest/internal/logging"
	"sma-backtest/internal/model"
)

// Demo:
// - Build a ten-day close series with two full crossover round trips and one
//   entry left open at the end
// - Run a 2/3 SMA crossover on it with no costs
// - Print the trade log and stats so the pieces can be checked by hand
func main() {
	asJSON := flag.Bool("json", false, "Print the full result as JSON instead of a table")
	tradesOut := flag.String("trades-out", "", "Optional path to write the trade log CSV")
	equityOut := flag.String("equity-out", "", "Optional path to write the equity curve CSV")
	flag.Parse()

	logging.Setup(logging.FromEnv())

	closes := []float64{100, 101, 99, 105, 110, 90, 95, 120, 130, 80}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{Time: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}

	provider := data.StaticProvider{Name: "demo", Items: bars}
	series, err := provider.Bars(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("demo series rejected")
	}

	params := model.DefaultParams()
	params.ShortPeriod = 2
	params.LongPeriod = 3
	params.InitialCapital = 1000
	params.SizePercent = 100
	params.SlippagePct = 0
	params.CommissionPct = 0

	result, err := backtest.New().Run(series, params, backtest.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("backtest failed")
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatal().Err(err).Msg("encode result")
		}
		return
	}

	fmt.Printf("Loaded %d bars from %s\n", len(series), provider.Source())
	fmt.Printf("Strategy=SMA %d/%d  capital=%.2f  size=%.0f%%\n\n",
		params.ShortPeriod, params.LongPeriod, params.InitialCapital, params.SizePercent)

	for _, t := range result.Trades {
		pnl := "        -"
		if t.PnL.Valid {
			pnl = fmt.Sprintf("%9.2f", t.PnL.Float64)
		}
		fmt.Printf("%s  %-4s  price=%7.2f  size=%9.5f  value=%8.2f  pnl=%s\n",
			t.Time.Format("2006-01-02"), t.Side, t.Price, t.Size, t.Value, pnl)
	}

	fmt.Println()
	for _, e := range result.Equity {
		fmt.Printf("%s  equity=%9.2f\n", e.Time.Format("2006-01-02"), e.Equity)
	}

	if *tradesOut != "" {
		if err := backtest.WriteTradesFile(*tradesOut, result.Trades); err != nil {
			log.Fatal().Err(err).Msg("write trades")
		}
		fmt.Printf("\nWrote CSV: %s\n", *tradesOut)
	}
	if *equityOut != "" {
		if err := backtest.WriteEquityFile(*equityOut, result.Equity); err != nil {
			log.Fatal().Err(err).Msg("write equity")
		}
		fmt.Printf("Wrote CSV: %s\n", *equityOut)
	}

	st := result.Stats
	sharpe := "n/a"
	if st.Sharpe.Valid {
		sharpe = fmt.Sprintf("%.3f", st.Sharpe.Float64)
	}
	fmt.Printf("\nDone. Final equity=%.2f  return=%.2f%%  CAGR=%.2f%%  sharpe=%s  maxDD=%.2f%%  trades=%d\n",
		st.FinalEquity, st.TotalReturnPct, st.CAGR*100, sharpe, st.MaxDrawdownPct*100, st.TradeCount)
}
