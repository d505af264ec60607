package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sma-backtest/internal/api/models"
	"sma-backtest/internal/data"
)

// PriceTTL is how long a simple-price answer is served from cache.
const PriceTTL = 30 * time.Second

// PriceHandler proxies latest prices with a short-lived cache.
type PriceHandler struct {
	client *data.CoinGeckoClient
	cache  data.Cache
}

// NewPriceHandler creates a price handler. A nil cache gets a private in-memory one.
func NewPriceHandler(client *data.CoinGeckoClient, cache data.Cache) *PriceHandler {
	if cache == nil {
		cache = data.NewMemoryCache(PriceTTL)
	}
	return &PriceHandler{client: client, cache: cache}
}

// GetPrice handles GET /api/v1/price?ids=bitcoin,ethereum&vs=usd
func (h *PriceHandler) GetPrice(c *gin.Context) {
	ids := splitList(c.Query("ids"))
	if len(ids) == 0 {
		badRequest(c, "MISSING_PARAM", "Please provide ?ids=bitcoin,ethereum")
		return
	}
	vs := splitList(c.DefaultQuery("vs", "usd"))
	if h.client == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error: models.ErrorDetail{Code: "SOURCE_DISABLED", Message: "coingecko data source is not configured"},
		})
		return
	}

	key := "price_" + strings.Join(ids, ",") + "_" + strings.Join(vs, ",")
	ctx := c.Request.Context()
	if raw, ok := h.cache.Get(ctx, key); ok {
		var cached map[string]map[string]float64
		if err := json.Unmarshal(raw, &cached); err == nil {
			c.JSON(http.StatusOK, models.PriceResponse{Source: "cache", Data: cached})
			return
		}
	}

	prices, err := h.client.SimplePrice(ctx, ids, vs)
	if err != nil {
		respondError(c, err)
		return
	}
	if raw, err := json.Marshal(prices); err == nil {
		h.cache.Set(ctx, key, raw)
	}
	c.JSON(http.StatusOK, models.PriceResponse{Source: "api", Data: prices})
}

// splitList turns "b, a,,a" into [a b].
func splitList(s string) []string {
	seen := map[string]bool{}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	sort.Strings(out)
	return out
}
