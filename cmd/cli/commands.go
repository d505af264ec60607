package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"sma-backtest/internal/analysis"
	"sma-backtest/internal/backtest"
	"sma-backtest/internal/config"
	"sma-backtest/internal/data"
	"sma-backtest/internal/model"
)

var dataFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "csv",
		Usage: "read bars from a CSV file (or a saved market_chart .json) instead of CoinGecko",
	},
	&cli.StringFlag{
		Name:  "coin",
		Usage: "CoinGecko coin id, e.g. bitcoin",
	},
	&cli.StringFlag{
		Name:  "vs",
		Usage: "quote currency",
	},
	&cli.IntFlag{
		Name:  "days",
		Usage: "days of history to fetch",
	},
}

var strategyFlags = []cli.Flag{
	&cli.IntFlag{Name: "short", Usage: "short SMA period"},
	&cli.IntFlag{Name: "long", Usage: "long SMA period"},
	&cli.Float64Flag{Name: "capital", Usage: "initial capital"},
	&cli.Float64Flag{Name: "slippage", Usage: "slippage percent applied to each fill"},
	&cli.Float64Flag{Name: "commission", Usage: "commission percent of traded notional"},
	&cli.Float64Flag{Name: "size", Usage: "percent of cash committed per entry"},
	&cli.Float64Flag{Name: "nominal-days", Usage: "day span assumed when the series has no usable span"},
}

var backtestCommand = &cli.Command{
	Name:  "backtest",
	Usage: "run one backtest and print its summary",
	Flags: concat(dataFlags, strategyFlags, []cli.Flag{
		&cli.StringFlag{Name: "trades-out", Usage: "write the trade log CSV to this path"},
		&cli.StringFlag{Name: "equity-out", Usage: "write the equity curve CSV to this path"},
		&cli.BoolFlag{Name: "show-trades", Usage: "print every trade"},
	}),
	Action: runBacktest,
}

var compareCommand = &cli.Command{
	Name:  "compare",
	Usage: "run a grid of short/long periods against one series and rank by total return",
	Flags: concat(dataFlags, strategyFlags, []cli.Flag{
		&cli.IntSliceFlag{
			Name:  "shorts",
			Value: cli.NewIntSlice(5, 10, 20),
			Usage: "short periods to try",
		},
		&cli.IntSliceFlag{
			Name:  "longs",
			Value: cli.NewIntSlice(20, 50, 100),
			Usage: "long periods to try",
		},
		&cli.IntFlag{Name: "parallel", Usage: "max concurrent runs (0 = GOMAXPROCS)"},
		&cli.IntFlag{Name: "top", Usage: "only print the best N (0 = all)"},
	}),
	Action: runCompare,
}

var fetchCommand = &cli.Command{
	Name:  "fetch",
	Usage: "download a market chart and save it as bar CSV",
	Flags: concat(dataFlags[1:], []cli.Flag{
		&cli.StringFlag{
			Name:     "out",
			Usage:    "output CSV path, or - for stdout",
			Required: true,
		},
	}),
	Action: runFetch,
}

func runBacktest(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	bars, source, err := acquire(c.Context, c, cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := backtest.New().Run(bars, cfg.Strategy, cfg.Backtest.Options())
	if err != nil {
		return err
	}
	log.Debug().Dur("took", time.Since(start)).Int("bars", len(bars)).Msg("backtest finished")

	printSummary(os.Stdout, source, bars, res)
	if c.Bool("show-trades") {
		printTrades(os.Stdout, res.Trades)
	}

	if p := c.String("trades-out"); p != "" {
		if err := backtest.WriteTradesFile(p, res.Trades); err != nil {
			return err
		}
		fmt.Printf("Wrote %d trades to %s\n", len(res.Trades), p)
	}
	if p := c.String("equity-out"); p != "" {
		if err := backtest.WriteEquityFile(p, res.Equity); err != nil {
			return err
		}
		fmt.Printf("Wrote %d equity points to %s\n", len(res.Equity), p)
	}
	return nil
}

func runCompare(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	variations := analysis.Grid(cfg.Strategy, c.IntSlice("shorts"), c.IntSlice("longs"))
	if len(variations) == 0 {
		return errors.New("no valid short/long pairs (short must be below long)")
	}
	bars, source, err := acquire(c.Context, c, cfg)
	if err != nil {
		return err
	}

	outcomes := analysis.RankByReturn(analysis.Compare(c.Context, bars, variations, cfg.Backtest.Options(), c.Int("parallel")))
	if top := c.Int("top"); top > 0 && top < len(outcomes) {
		outcomes = outcomes[:top]
	}

	profile := analysis.ComputeProfile(bars)
	fmt.Printf("%s: %d bars, buy&hold %s%%, oracle %s%%\n\n",
		source, len(bars), pct(profile.BuyAndHoldPct), pct(profile.OraclePct))
	fmt.Printf("%-4s %-14s %10s %8s %8s %7s\n", "rank", "variation", "return%", "sharpe", "maxdd%", "trades")
	for i, o := range outcomes {
		if o.Err != nil {
			fmt.Printf("%-4d %-14s error: %v\n", i+1, o.Name, o.Err)
			continue
		}
		st := o.Result.Stats
		fmt.Printf("%-4d %-14s %10s %8s %8s %7d\n",
			i+1, o.Name, pct(st.TotalReturnPct), sharpe(st), pct(st.MaxDrawdownPct*100), st.TradeCount)
	}
	return nil
}

func runFetch(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	bars, source, err := acquire(c.Context, c, cfg)
	if err != nil {
		return err
	}

	out := c.String("out")
	var w io.Writer = os.Stdout
	if out != "-" {
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := data.WriteBarsCSV(w, bars); err != nil {
		return err
	}
	if out != "-" {
		first, last := data.Window(bars)
		fmt.Printf("Wrote %d %s bars (%s to %s) to %s\n",
			len(bars), source, first.Format("2006-01-02"), last.Format("2006-01-02"), out)
	}
	return nil
}

// loadConfig reads --config (or the defaults) and lays any explicitly set flags on top.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	p := &cfg.Strategy
	if c.IsSet("short") {
		p.ShortPeriod = c.Int("short")
	}
	if c.IsSet("long") {
		p.LongPeriod = c.Int("long")
	}
	if c.IsSet("capital") {
		p.InitialCapital = c.Float64("capital")
	}
	if c.IsSet("slippage") {
		p.SlippagePct = c.Float64("slippage")
	}
	if c.IsSet("commission") {
		p.CommissionPct = c.Float64("commission")
	}
	if c.IsSet("size") {
		p.SizePercent = c.Float64("size")
	}
	if c.IsSet("nominal-days") {
		cfg.Backtest.NominalDays = c.Float64("nominal-days")
	}

	if c.IsSet("csv") {
		cfg.Data.Source = "csv"
		cfg.Data.CSVPath = c.String("csv")
	}
	if c.IsSet("coin") {
		cfg.Data.Source = "coingecko"
		cfg.Data.CoinID = resolveCoin(c.String("coin"))
	}
	if c.IsSet("vs") {
		cfg.Data.VsCurrency = c.String("vs")
	}
	if c.IsSet("days") {
		cfg.Data.Days = c.Int("days")
	}
	return cfg, nil
}

// resolveCoin maps a symbol such as "btc" to its CoinGecko id using the local
// catalogue. Unknown keys pass through unchanged.
func resolveCoin(key string) string {
	list, err := data.LoadCoins(data.DefaultCoinsPath())
	if err != nil {
		return key
	}
	if coin, ok := list.Find(key); ok {
		if coin.ID != key {
			log.Debug().Str("key", key).Str("id", coin.ID).Msg("resolved coin")
		}
		return coin.ID
	}
	return key
}

// acquire loads bars from whichever source cfg.Data names.
func acquire(ctx context.Context, c *cli.Context, cfg *config.Config) ([]model.Bar, string, error) {
	var provider data.Provider
	switch cfg.Data.Source {
	case "csv":
		if cfg.Data.CSVPath == "" {
			return nil, "", errors.New("data source csv needs --csv or data.csv_path")
		}
		if c.Command.Name == "fetch" {
			return nil, "", errors.New("fetch only reads from coingecko")
		}
		provider = data.FileProvider{Path: cfg.Data.CSVPath}
	default:
		cache, err := data.NewCache(cfg.Cache.CacheOptions())
		if err != nil {
			return nil, "", err
		}
		client := data.NewCoinGeckoClient(cfg.Data.ClientOptions(cache, nil))
		provider = data.CoinGeckoProvider{Client: client, Params: cfg.Data.MarketChart()}
	}

	bars, err := provider.Bars(ctx)
	if err != nil {
		return nil, "", err
	}
	log.Info().Str("source", provider.Source()).Int("bars", len(bars)).Msg("bars loaded")
	return bars, provider.Source(), nil
}

func printSummary(w io.Writer, source string, bars []model.Bar, res *backtest.Result) {
	st := res.Stats
	p := res.Params
	first, last := data.Window(bars)
	fmt.Fprintf(w, "Source:        %s (%d bars, %s to %s)\n", source, len(bars),
		first.Format(time.RFC3339), last.Format(time.RFC3339))
	fmt.Fprintf(w, "Strategy:      SMA %d/%d, size %s%%, slippage %s%%, commission %s%%\n",
		p.ShortPeriod, p.LongPeriod, pct(p.SizePercent), pct(p.SlippagePct), pct(p.CommissionPct))
	fmt.Fprintf(w, "Capital:       %s -> %s\n", money(p.InitialCapital), money(st.FinalEquity))
	fmt.Fprintf(w, "Total return:  %s%%\n", pct(st.TotalReturnPct))
	fmt.Fprintf(w, "CAGR:          %s%%\n", pct(st.CAGR*100))
	fmt.Fprintf(w, "Sharpe:        %s\n", sharpe(st))
	fmt.Fprintf(w, "Max drawdown:  %s%%\n", pct(st.MaxDrawdownPct*100))
	fmt.Fprintf(w, "Volatility:    %s%%\n", pct(st.Volatility*100))
	fmt.Fprintf(w, "Trades:        %d\n", st.TradeCount)

	profile := analysis.ComputeProfile(bars)
	fmt.Fprintf(w, "Buy and hold:  %s%%\n", pct(profile.BuyAndHoldPct))
}

func printTrades(w io.Writer, trades []model.Trade) {
	fmt.Fprintln(w)
	for _, t := range trades {
		pnl := ""
		if t.PnL.Valid {
			pnl = "pnl=" + money(t.PnL.Float64)
		}
		fmt.Fprintf(w, "%s %-4s price=%s size=%s value=%s fee=%s %s\n",
			t.Time.Format("2006-01-02 15:04"), t.Side,
			money(t.Price), decimal.NewFromFloat(t.Size).Round(8).String(),
			money(t.Value), money(t.Commission), pnl)
	}
}

func money(x float64) string { return decimal.NewFromFloat(x).StringFixed(2) }

func pct(x float64) string { return decimal.NewFromFloat(x).StringFixed(2) }

func sharpe(st backtest.Stats) string {
	if !st.Sharpe.Valid {
		return "n/a"
	}
	return decimal.NewFromFloat(st.Sharpe.Float64).StringFixed(3)
}

func concat(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
