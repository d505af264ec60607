package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/volatiletech/null"

	"sma-backtest/internal/api/models"
	"sma-backtest/internal/data"
)

// CoinsHandler serves the static coin catalogue and live coin details.
type CoinsHandler struct {
	path   string
	client *data.CoinGeckoClient
	cache  data.Cache
}

// NewCoinsHandler creates a coins handler. Details need a client; the catalogue does not.
func NewCoinsHandler(path string, client *data.CoinGeckoClient) *CoinsHandler {
	if path == "" {
		path = data.DefaultCoinsPath()
	}
	return &CoinsHandler{path: path, client: client, cache: data.NewMemoryCache(PriceTTL)}
}

// load reads the catalogue. A missing file is an empty catalogue, not an error.
func (h *CoinsHandler) load(c *gin.Context) (*data.CoinList, bool) {
	list, err := data.LoadCoins(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &data.CoinList{Coins: []data.Coin{}}, true
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "COINS_LOAD_ERROR",
				Message: fmt.Sprintf("Failed to load coins: %v", err),
			},
		})
		return nil, false
	}
	return list, true
}

// ListCoins handles GET /api/v1/coins (?q= filters by id, symbol or name)
func (h *CoinsHandler) ListCoins(c *gin.Context) {
	list, ok := h.load(c)
	if !ok {
		return
	}

	q := strings.ToLower(strings.TrimSpace(c.Query("q")))
	coins := make([]models.CoinInfo, 0, len(list.Coins))
	for _, coin := range list.Coins {
		if q != "" && !strings.Contains(coin.ID, q) && !strings.Contains(strings.ToLower(coin.Symbol), q) &&
			!strings.Contains(strings.ToLower(coin.Name), q) {
			continue
		}
		coins = append(coins, models.CoinInfo{
			ID:     coin.ID,
			Symbol: coin.Symbol,
			Name:   coin.Name,
			Rank:   coin.MarketCapRank,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"coins":       coins,
		"vs_currency": list.VsCurrency,
		"updated_at":  list.UpdatedAt,
		"count":       len(coins),
	})
}

// GetCoin handles GET /api/v1/coins/:id?vs=usd. The id may also be a catalogue symbol.
func (h *CoinsHandler) GetCoin(c *gin.Context) {
	if h.client == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error: models.ErrorDetail{Code: "SOURCE_DISABLED", Message: "coingecko data source is not configured"},
		})
		return
	}
	list, ok := h.load(c)
	if !ok {
		return
	}
	id := strings.ToLower(strings.TrimSpace(c.Param("id")))
	if coin, found := list.Find(id); found {
		id = coin.ID
	}
	vs := strings.ToLower(strings.TrimSpace(c.DefaultQuery("vs", "usd")))

	ctx := c.Request.Context()
	key := "coin_" + id
	var detail data.CoinDetail
	source := "cache"
	raw, hit := h.cache.Get(ctx, key)
	if !hit || json.Unmarshal(raw, &detail) != nil {
		fetched, err := h.client.Coin(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		detail, source = *fetched, "api"
		if raw, err := json.Marshal(fetched); err == nil {
			h.cache.Set(ctx, key, raw)
		}
	}

	resp := models.CoinDetailResponse{
		Source:       source,
		ID:           detail.ID,
		Symbol:       detail.Symbol,
		Name:         detail.Name,
		Rank:         detail.MarketCapRank,
		Image:        detail.ImageURL(),
		Change24hPct: detail.MarketData.PriceChangePercentage24h,
	}
	if price, quoted := detail.Price(vs); quoted != "" {
		resp.Price = null.Float64From(price)
		resp.VsCurrency = quoted
	}
	c.JSON(http.StatusOK, resp)
}
