package data

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoinsRoundTrip(t *testing.T) {
	list := CoinListFromMarkets("usd", []MarketCoin{
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", MarketCapRank: 1},
		{ID: "ethereum", Symbol: "eth", Name: "Ethereum", MarketCapRank: 2},
	})
	path := filepath.Join(t.TempDir(), "nested", "coins.json")
	require.NoError(t, SaveCoins(list, path))

	got, err := LoadCoins(path)
	require.NoError(t, err)
	assert.Equal(t, list, got)

	c, ok := got.Find("ETH")
	require.True(t, ok)
	assert.Equal(t, "ethereum", c.ID)
	_, ok = got.Find("doge")
	assert.False(t, ok)
}

func TestLoadCoinsMissing(t *testing.T) {
	_, err := LoadCoins(filepath.Join(t.TempDir(), "none.json"))
	assert.Error(t, err)
}

func TestDefaultCoinsPath(t *testing.T) {
	t.Setenv("COINS_FILE", "/tmp/c.json")
	assert.Equal(t, "/tmp/c.json", DefaultCoinsPath())
	t.Setenv("COINS_FILE", "")
	assert.Equal(t, "./data/coins.json", DefaultCoinsPath())
}
