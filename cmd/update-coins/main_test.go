package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sma-backtest/internal/data"
)

func TestMergeCoinsKeepsSeedAndOrdersByRank(t *testing.T) {
	t.Parallel()

	fresh := data.CoinListFromMarkets("usd", []data.MarketCoin{
		{ID: "ethereum", Symbol: "eth", Name: "Ethereum", MarketCapRank: 2},
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", MarketCapRank: 1},
	})
	seed := []data.Coin{
		{ID: "bitcoin", Symbol: "btc", Name: "Old Bitcoin", MarketCapRank: 7},
		{ID: "obscure", Symbol: "obs", Name: "Obscure", MarketCapRank: 900},
	}

	got := mergeCoins(fresh, seed)

	ids := make([]string, 0, len(got.Coins))
	for _, c := range got.Coins {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"bitcoin", "ethereum", "obscure"}, ids)
	assert.Equal(t, "Bitcoin", got.Coins[0].Name)
	assert.Zero(t, got.Coins[2].MarketCapRank)
}
