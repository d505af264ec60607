package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/volatiletech/null"
	"golang.org/x/time/rate"

	"sma-backtest/internal/metrics"
)

const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// ClientOptions configures a CoinGeckoClient. Zero values fall back to defaults.
type ClientOptions struct {
	APIKey               string
	BaseURL              string
	Timeout              time.Duration
	RequestsPerSec       float64
	MaxRetryTime         time.Duration
	RetryInitialInterval time.Duration
	Cache                Cache
	Metrics              *metrics.Metrics
}

// CoinGeckoClient fetches public market data with rate limiting, retries and an
// optional response cache.
type CoinGeckoClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      Cache
	metrics    *metrics.Metrics

	maxRetryTime    time.Duration
	initialInterval time.Duration

	logger zerolog.Logger
}

func NewCoinGeckoClient(opts ClientOptions) *CoinGeckoClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultCoinGeckoURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxRetryTime <= 0 {
		opts.MaxRetryTime = 30 * time.Second
	}
	if opts.RetryInitialInterval <= 0 {
		opts.RetryInitialInterval = 500 * time.Millisecond
	}
	burst := int(opts.RequestsPerSec)
	if burst < 1 {
		burst = 1
	}
	return &CoinGeckoClient{
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter:         rate.NewLimiter(rate.Limit(opts.RequestsPerSec), burst),
		cache:           opts.Cache,
		metrics:         opts.Metrics,
		maxRetryTime:    opts.MaxRetryTime,
		initialInterval: opts.RetryInitialInterval,
		logger:          log.With().Str("component", "coingecko").Logger(),
	}
}

// MarketChartParams selects a price history.
type MarketChartParams struct {
	CoinID     string
	VsCurrency string
	Days       int
}

func (p MarketChartParams) validate() error {
	if p.CoinID == "" {
		return errors.New("coin_id is required")
	}
	if p.Days < 1 {
		return fmt.Errorf("days must be at least 1, got %d", p.Days)
	}
	return nil
}

type marketChartResponse struct {
	Prices       [][2]float64 `json:"prices"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

func (r marketChartResponse) points() []PricePoint {
	vols := make(map[int64]float64, len(r.TotalVolumes))
	for _, v := range r.TotalVolumes {
		vols[int64(v[0])] = v[1]
	}
	out := make([]PricePoint, 0, len(r.Prices))
	for _, p := range r.Prices {
		ms := int64(p[0])
		out = append(out, PricePoint{
			Time:   time.UnixMilli(ms).UTC(),
			Price:  p[1],
			Volume: vols[ms],
		})
	}
	return out
}

// MarketChart fetches raw price samples for a coin. Windows longer than a day request
// the daily interval; shorter ones take the API's finer default granularity.
func (c *CoinGeckoClient) MarketChart(ctx context.Context, p MarketChartParams) ([]PricePoint, error) {
	if err := p.validate(); err != nil {
		return nil, &SourceError{Source: "coingecko", Code: CodeAPIError, Message: err.Error(), Err: err}
	}
	if p.VsCurrency == "" {
		p.VsCurrency = "usd"
	}

	q := url.Values{}
	q.Set("vs_currency", strings.ToLower(p.VsCurrency))
	q.Set("days", strconv.Itoa(p.Days))
	if BucketForDays(float64(p.Days)) == BucketDaily {
		q.Set("interval", "daily")
	}

	var resp marketChartResponse
	path := "/coins/" + url.PathEscape(p.CoinID) + "/market_chart"
	if err := c.get(ctx, path, q, true, &resp); err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("coin", p.CoinID).
		Int("days", p.Days).
		Int("points", len(resp.Prices)).
		Msg("market chart fetched")
	return resp.points(), nil
}

// SimplePrice returns the latest price of each coin in each currency. It always goes to
// the network; callers that want a short-lived cache keep their own.
func (c *CoinGeckoClient) SimplePrice(ctx context.Context, ids []string, vs []string) (map[string]map[string]float64, error) {
	if len(ids) == 0 {
		return nil, &SourceError{Source: "coingecko", Code: CodeAPIError, Message: "at least one coin id is required"}
	}
	if len(vs) == 0 {
		vs = []string{"usd"}
	}
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", strings.Join(vs, ","))

	out := map[string]map[string]float64{}
	if err := c.get(ctx, "/simple/price", q, false, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarketCoin is one row of the /coins/markets listing.
type MarketCoin struct {
	ID            string  `json:"id"`
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	CurrentPrice  float64 `json:"current_price"`
	MarketCap     float64 `json:"market_cap"`
	MarketCapRank int     `json:"market_cap_rank"`
}

// Markets lists coins ordered by market cap.
func (c *CoinGeckoClient) Markets(ctx context.Context, vs string, perPage int) ([]MarketCoin, error) {
	if vs == "" {
		vs = "usd"
	}
	if perPage <= 0 || perPage > 250 {
		perPage = 100
	}
	q := url.Values{}
	q.Set("vs_currency", vs)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", "1")
	q.Set("sparkline", "false")

	var out []MarketCoin
	if err := c.get(ctx, "/coins/markets", q, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CoinDetail is the metadata and market snapshot of a single coin.
type CoinDetail struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	MarketCapRank int    `json:"market_cap_rank"`
	Image         struct {
		Thumb string `json:"thumb"`
		Small string `json:"small"`
	} `json:"image"`
	MarketData struct {
		CurrentPrice             map[string]float64 `json:"current_price"`
		MarketCap                map[string]float64 `json:"market_cap"`
		PriceChangePercentage24h null.Float64       `json:"price_change_percentage_24h"`
	} `json:"market_data"`
}

// Price returns the current price in vs, falling back to usd. The second result is
// the currency the price is actually quoted in; it is empty when neither is known.
func (d *CoinDetail) Price(vs string) (float64, string) {
	vs = strings.ToLower(vs)
	if p, ok := d.MarketData.CurrentPrice[vs]; ok {
		return p, vs
	}
	if p, ok := d.MarketData.CurrentPrice["usd"]; ok {
		return p, "usd"
	}
	return 0, ""
}

// ImageURL prefers the small logo over the thumbnail.
func (d *CoinDetail) ImageURL() string {
	if d.Image.Small != "" {
		return d.Image.Small
	}
	return d.Image.Thumb
}

// Coin fetches one coin's metadata with market data but without tickers, community or
// developer sections. Like SimplePrice it is never served from the response cache.
func (c *CoinGeckoClient) Coin(ctx context.Context, id string) (*CoinDetail, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return nil, &SourceError{Source: "coingecko", Code: CodeAPIError, Message: "coin id is required"}
	}
	q := url.Values{}
	q.Set("localization", "false")
	q.Set("tickers", "false")
	q.Set("market_data", "true")
	q.Set("community_data", "false")
	q.Set("developer_data", "false")
	q.Set("sparkline", "false")

	var out CoinDetail
	if err := c.get(ctx, "/coins/"+url.PathEscape(id), q, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// get performs a rate-limited GET with retries and decodes the JSON body into out.
func (c *CoinGeckoClient) get(ctx context.Context, path string, q url.Values, cacheable bool, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return &SourceError{Source: "coingecko", Code: CodeAPIError, Message: "invalid base URL", Err: err}
	}
	u.RawQuery = q.Encode()

	var key string
	if cacheable && c.cache != nil {
		key = GenerateCacheKey(u.Path, u.RawQuery)
		if raw, ok := c.cache.Get(ctx, key); ok {
			if err := json.Unmarshal(raw, out); err == nil {
				c.metrics.ObserveDataSource("coingecko", "cache")
				c.logger.Debug().Str("path", u.Path).Msg("cache hit")
				return nil
			}
		}
	}

	var body []byte
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("x-cg-demo-api-key", c.apiKey)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.metrics.ObserveDataSource("coingecko", "transport_error")
			c.logger.Warn().Err(err).Str("path", u.Path).Dur("duration", time.Since(start)).Msg("request failed")
			return err
		}
		defer resp.Body.Close()

		c.metrics.ObserveDataSource("coingecko", strconv.Itoa(resp.StatusCode))
		c.logger.Debug().
			Str("path", u.Path).
			Int("status", resp.StatusCode).
			Dur("duration", time.Since(start)).
			Msg("response")

		if resp.StatusCode == http.StatusOK {
			body, err = io.ReadAll(resp.Body)
			return err
		}
		serr := statusError(resp)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return serr
		}
		return backoff.Permanent(serr)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxElapsedTime = c.maxRetryTime

	notify := func(err error, wait time.Duration) {
		c.logger.Info().Err(err).Dur("retry_in", wait).Str("path", u.Path).Msg("retrying")
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		if _, ok := IsSourceError(err); ok {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("coingecko %s: %w", u.Path, ctxErr)
		}
		return &SourceError{Source: "coingecko", Code: CodeAPIError, Message: err.Error(), Err: err}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &SourceError{Source: "coingecko", StatusCode: http.StatusOK, Code: CodeDecodeError, Message: "malformed response body", Err: err}
	}
	if key != "" {
		c.cache.Set(ctx, key, body)
	}
	return nil
}

func statusError(resp *http.Response) *SourceError {
	e := &SourceError{Source: "coingecko", StatusCode: resp.StatusCode}
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		e.Code = CodeRateLimited
		e.RetryAfter = resp.Header.Get("Retry-After")
		e.Message = fmt.Sprintf("rate limit exceeded, retry after: %s", e.RetryAfter)
	case http.StatusNotFound:
		e.Code = CodeNotFound
		e.Message = "coin or currency not found"
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Code = CodeUnauthorized
		e.Message = "unauthorized: check the API key"
	default:
		e.Code = CodeAPIError
		e.Message = fmt.Sprintf("API returned status %d: %s", resp.StatusCode, resp.Status)
	}
	return e
}
