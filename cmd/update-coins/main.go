package main

import (
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"sma-backtest/internal/data"
	"sma-backtest/internal/logging"
)

func main() {
	_ = godotenv.Load()
	logging.Setup(logging.FromEnv())

	app := cli.NewApp()
	app.Name = "update-coins"
	app.Usage = "refresh the coin catalogue from CoinGecko /coins/markets"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "output",
			Value: data.DefaultCoinsPath(),
			Usage: "catalogue file to write",
		},
		&cli.StringFlag{
			Name:  "seed",
			Usage: "existing catalogue whose coins are kept when missing from the listing (default: --output)",
		},
		&cli.StringFlag{
			Name:  "vs",
			Value: "usd",
			Usage: "quote currency used for market cap ranking",
		},
		&cli.IntFlag{
			Name:  "top",
			Value: 100,
			Usage: "number of coins to fetch, by market cap (max 250)",
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "CoinGecko demo API key",
			EnvVars: []string{"COINGECKO_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "CoinGecko API base URL",
			EnvVars: []string{"COINGECKO_BASE_URL"},
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Value: 30 * time.Second,
			Usage: "request timeout",
		},
	}
	app.Action = update

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("failed to update coins")
	}
}

func update(c *cli.Context) error {
	output := c.String("output")
	seedPath := c.String("seed")
	if seedPath == "" {
		seedPath = output
	}

	var seed []data.Coin
	if list, err := data.LoadCoins(seedPath); err == nil {
		seed = list.Coins
		log.Info().Str("path", seedPath).Int("coins", len(seed)).Msg("loaded seed catalogue")
	}

	client := data.NewCoinGeckoClient(data.ClientOptions{
		APIKey:  c.String("api-key"),
		BaseURL: c.String("base-url"),
		Timeout: c.Duration("timeout"),
	})

	vs := c.String("vs")
	markets, err := client.Markets(c.Context, vs, c.Int("top"))
	if err != nil {
		return err
	}
	log.Info().Int("coins", len(markets)).Str("vs", vs).Msg("fetched market listing")

	list := mergeCoins(data.CoinListFromMarkets(vs, markets), seed)
	if err := data.SaveCoins(list, output); err != nil {
		return err
	}
	log.Info().Int("coins", len(list.Coins)).Str("path", output).Msg("saved coin catalogue")
	return nil
}

// mergeCoins appends seed coins the listing did not return. Fresh entries win; kept
// seed entries lose their rank since it is no longer current.
func mergeCoins(list *data.CoinList, seed []data.Coin) *data.CoinList {
	known := make(map[string]bool, len(list.Coins))
	for _, coin := range list.Coins {
		known[coin.ID] = true
	}
	for _, coin := range seed {
		if known[coin.ID] {
			continue
		}
		coin.MarketCapRank = 0
		list.Coins = append(list.Coins, coin)
		known[coin.ID] = true
	}

	sort.SliceStable(list.Coins, func(i, j int) bool {
		ri, rj := list.Coins[i].MarketCapRank, list.Coins[j].MarketCapRank
		if ri == 0 || rj == 0 {
			return ri != 0 && rj == 0
		}
		return ri < rj
	})
	return list
}
