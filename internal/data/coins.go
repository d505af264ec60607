package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Coin is one tradable asset the service knows how to fetch.
type Coin struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	MarketCapRank int    `json:"market_cap_rank,omitempty"`
}

// CoinList is the on-disk coin catalogue.
type CoinList struct {
	VsCurrency string `json:"vs_currency"`
	UpdatedAt  string `json:"updated_at"` // RFC 3339
	Coins      []Coin `json:"coins"`
}

// Find looks a coin up by id or, failing that, by symbol.
func (l *CoinList) Find(key string) (Coin, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, c := range l.Coins {
		if c.ID == key {
			return c, true
		}
	}
	for _, c := range l.Coins {
		if strings.ToLower(c.Symbol) == key {
			return c, true
		}
	}
	return Coin{}, false
}

// CoinListFromMarkets builds a catalogue from a /coins/markets listing.
func CoinListFromMarkets(vs string, markets []MarketCoin) *CoinList {
	list := &CoinList{
		VsCurrency: vs,
		UpdatedAt:  time.Now().UTC().Format(time.RFC3339),
		Coins:      make([]Coin, 0, len(markets)),
	}
	for _, m := range markets {
		list.Coins = append(list.Coins, Coin{
			ID:            m.ID,
			Symbol:        m.Symbol,
			Name:          m.Name,
			MarketCapRank: m.MarketCapRank,
		})
	}
	return list
}

// LoadCoins loads a coin catalogue from a JSON file.
func LoadCoins(filePath string) (*CoinList, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read coins file: %w", err)
	}

	var list CoinList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to parse coins file: %w", err)
	}
	return &list, nil
}

// SaveCoins writes a coin catalogue, creating the directory if needed.
func SaveCoins(list *CoinList, filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	raw, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal coins: %w", err)
	}

	if err := os.WriteFile(filePath, raw, 0644); err != nil {
		return fmt.Errorf("failed to write coins file: %w", err)
	}
	return nil
}

// DefaultCoinsPath honours COINS_FILE and falls back to data/coins.json.
func DefaultCoinsPath() string {
	if path := os.Getenv("COINS_FILE"); path != "" {
		return path
	}
	return "./data/coins.json"
}
