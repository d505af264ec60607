package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sma-backtest/internal/analysis"
	"sma-backtest/internal/api/models"
	"sma-backtest/internal/backtest"
	"sma-backtest/internal/data"
	"sma-backtest/internal/metrics"
	"sma-backtest/internal/model"
	"sma-backtest/internal/store/sqlite"
)

const (
	defaultDays   = 90
	maxVariations = 200
)

// BacktestDeps wires a BacktestHandler. Client and Store may be nil: the coingecko
// source and persistence are then unavailable.
type BacktestDeps struct {
	Client       *data.CoinGeckoClient
	Store        *sqlite.Store
	Metrics      *metrics.Metrics
	Options      backtest.Options
	CompareLimit int
	Timeout      time.Duration
}

// BacktestHandler handles backtest-related requests.
type BacktestHandler struct {
	client       *data.CoinGeckoClient
	store        *sqlite.Store
	metrics      *metrics.Metrics
	engine       *backtest.Engine
	options      backtest.Options
	compareLimit int
	timeout      time.Duration
	logger       zerolog.Logger
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(deps BacktestDeps) *BacktestHandler {
	if deps.Timeout <= 0 {
		deps.Timeout = 60 * time.Second
	}
	return &BacktestHandler{
		client:       deps.Client,
		store:        deps.Store,
		metrics:      deps.Metrics,
		engine:       backtest.New(),
		options:      deps.Options,
		compareLimit: deps.CompareLimit,
		timeout:      deps.Timeout,
		logger:       log.With().Str("component", "backtest_handler").Logger(),
	}
}

// RunBacktest handles POST /api/v1/backtest
func (h *BacktestHandler) RunBacktest(c *gin.Context) {
	req := models.NewBacktestRequest()
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	// Params are checked before any data is fetched.
	if err := req.Params.Validate(); err != nil {
		h.metrics.ObserveRun(runStatus(err), 0, 0)
		respondError(c, err)
		return
	}

	provider, symbol, err := h.provider(req.DataSource)
	if err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	bars, err := provider.Bars(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Str("source", provider.Source()).Msg("data acquisition failed")
		respondError(c, err)
		return
	}

	result, err := h.run(bars, req.Params, h.runOptions(req.Options))
	if err != nil {
		respondError(c, err)
		return
	}

	start, end := data.Window(bars)
	resp := models.BacktestResponse{
		Status: "completed",
		Source: provider.Source(),
		Symbol: symbol,
		Bars:   len(bars),
		Window: models.TimeWindow{Start: start, End: end},
		Params: result.Params,
		Stats:  result.Stats,
	}
	profile := analysis.ComputeProfile(bars)
	resp.Benchmark = &profile
	if req.Options.IncludeTrades {
		resp.Trades = result.Trades
	}
	if req.Options.IncludeEquity {
		resp.Equity = result.Equity
	}

	if h.store != nil && !req.Options.SkipStore {
		run := &sqlite.Run{Source: provider.Source(), Symbol: symbol, Bars: len(bars), Result: result}
		if err := h.store.SaveRun(ctx, run); err != nil {
			h.logger.Error().Err(err).Msg("failed to store run")
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error: models.ErrorDetail{Code: "STORE_ERROR", Message: err.Error()},
			})
			return
		}
		resp.ID = run.ID
		resp.CreatedAt = run.CreatedAt
	}

	h.logger.Info().
		Str("id", resp.ID).
		Str("source", resp.Source).
		Str("symbol", symbol).
		Int("bars", len(bars)).
		Int("trades", result.Stats.TradeCount).
		Float64("total_return_pct", result.Stats.TotalReturnPct).
		Msg("backtest completed")
	c.JSON(http.StatusOK, resp)
}

// ListBacktests handles GET /api/v1/backtest
func (h *BacktestHandler) ListBacktests(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if runs == nil {
		runs = []sqlite.Summary{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetBacktest handles GET /api/v1/backtest/:id
func (h *BacktestHandler) GetBacktest(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	sum, err := h.store.GetSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.BacktestResponse{
		ID:        sum.ID,
		Status:    "completed",
		CreatedAt: sum.CreatedAt,
		Source:    sum.Source,
		Symbol:    sum.Symbol,
		Bars:      sum.Bars,
		Params:    sum.Params,
		Stats:     sum.Stats,
	})
}

// GetTrades handles GET /api/v1/backtest/:id/trades (?format=csv)
func (h *BacktestHandler) GetTrades(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	if c.Query("format") == "csv" {
		writeCSV(c, run.ID+"-trades.csv", func(c *gin.Context) error {
			return backtest.WriteTradesCSV(c.Writer, run.Result.Trades)
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": run.ID, "trades": run.Result.Trades})
}

// GetEquity handles GET /api/v1/backtest/:id/equity (?format=csv)
func (h *BacktestHandler) GetEquity(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	if c.Query("format") == "csv" {
		writeCSV(c, run.ID+"-equity.csv", func(c *gin.Context) error {
			return backtest.WriteEquityCSV(c.Writer, run.Result.Equity)
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": run.ID, "equity": run.Result.Equity})
}

// DeleteBacktest handles DELETE /api/v1/backtest/:id
func (h *BacktestHandler) DeleteBacktest(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	if err := h.store.DeleteRun(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CompareBacktests handles POST /api/v1/backtest/compare
func (h *BacktestHandler) CompareBacktests(c *gin.Context) {
	req := models.NewCompareBacktestRequest()
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	variations, err := buildVariations(req)
	if err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	provider, _, err := h.provider(req.DataSource)
	if err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	// Fetch data once
	bars, err := provider.Bars(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	start := time.Now()
	outcomes := analysis.Compare(ctx, bars, variations, h.runOptions(req.Options), h.compareLimit)
	for _, o := range outcomes {
		h.metrics.ObserveRun(runStatus(o.Err), len(bars), o.Duration)
	}
	ranked := analysis.RankByReturn(outcomes)

	from, to := data.Window(bars)
	resp := models.CompareBacktestResponse{
		Source:     provider.Source(),
		Bars:       len(bars),
		Window:     models.TimeWindow{Start: from, End: to},
		Benchmark:  analysis.ComputeProfile(bars),
		Comparison: make([]models.ComparisonResult, 0, len(ranked)),
	}
	if best, ok := analysis.Best(outcomes); ok {
		resp.Best = best.Name
	}
	for i, o := range ranked {
		row := models.ComparisonResult{Name: o.Name, Params: o.Params}
		if o.Err != nil {
			_, detail := errorResponse(o.Err)
			row.Status = "error"
			row.Error = &detail
		} else {
			stats := o.Result.Stats
			row.Rank = i + 1
			row.Status = "completed"
			row.Stats = &stats
		}
		resp.Comparison = append(resp.Comparison, row)
	}

	h.logger.Info().
		Int("variations", len(variations)).
		Int("bars", len(bars)).
		Str("best", resp.Best).
		Dur("duration", time.Since(start)).
		Msg("comparison completed")
	c.JSON(http.StatusOK, resp)
}

// Helper methods

func (h *BacktestHandler) run(bars []model.Bar, params model.StrategyParams, opts backtest.Options) (*backtest.Result, error) {
	start := time.Now()
	result, err := h.engine.Run(bars, params, opts)
	h.metrics.ObserveRun(runStatus(err), len(bars), time.Since(start))
	if err != nil {
		h.logger.Warn().Err(err).Int("bars", len(bars)).Msg("backtest failed")
	}
	return result, err
}

func (h *BacktestHandler) runOptions(o models.BacktestOptions) backtest.Options {
	opts := h.options
	if o.NominalDays > 0 {
		opts.NominalDays = o.NominalDays
	}
	return opts
}

func (h *BacktestHandler) provider(ds models.DataSourceConfig) (data.Provider, string, error) {
	switch ds.Type {
	case "coingecko":
		if h.client == nil {
			return nil, "", errors.New("coingecko data source is not configured")
		}
		if ds.CoinID == "" {
			return nil, "", errors.New("data_source.coin_id is required for coingecko")
		}
		days := ds.Days
		if days == 0 {
			days = defaultDays
		}
		if days < 0 {
			return nil, "", errors.New("data_source.days must be positive")
		}
		p := data.MarketChartParams{CoinID: ds.CoinID, VsCurrency: ds.VsCurrency, Days: days}
		return data.CoinGeckoProvider{Client: h.client, Params: p}, ds.CoinID, nil
	case "csv":
		if strings.TrimSpace(ds.CSV) == "" {
			return nil, "", errors.New("data_source.csv is required for csv")
		}
		return data.ReaderProvider{Name: "csv", R: strings.NewReader(ds.CSV)}, "", nil
	default:
		return nil, "", fmt.Errorf("unsupported data source type: %s", ds.Type)
	}
}

func buildVariations(req models.CompareBacktestRequest) ([]analysis.Variation, error) {
	var out []analysis.Variation
	for i, v := range req.Variations {
		p := req.BaseParams
		if len(v.Params) > 0 {
			if err := json.Unmarshal(v.Params, &p); err != nil {
				return nil, fmt.Errorf("variations[%d].params: %w", i, err)
			}
		}
		out = append(out, analysis.Variation{Name: v.Name, Params: p})
	}
	if g := req.Grid; g != nil {
		// Bound the grid by its axis lengths before anything is expanded.
		ns := analysis.RangeLen(g.Short.From, g.Short.To, stepOrOne(g.Short.Step))
		nl := analysis.RangeLen(g.Long.From, g.Long.To, stepOrOne(g.Long.Step))
		if ns > maxVariations || nl > maxVariations || len(out)+ns*nl > maxVariations {
			return nil, fmt.Errorf("grid too large: %d short x %d long periods plus %d variations (max %d)",
				ns, nl, len(out), maxVariations)
		}
		shorts := analysis.Range(g.Short.From, g.Short.To, stepOrOne(g.Short.Step))
		longs := analysis.Range(g.Long.From, g.Long.To, stepOrOne(g.Long.Step))
		out = append(out, analysis.Grid(req.BaseParams, shorts, longs)...)
	}
	if len(out) == 0 {
		return nil, errors.New("at least one variation or a grid is required")
	}
	if len(out) > maxVariations {
		return nil, fmt.Errorf("too many variations: %d (max %d)", len(out), maxVariations)
	}
	return out, nil
}

func stepOrOne(step int) int {
	if step <= 0 {
		return 1
	}
	return step
}

func (h *BacktestHandler) requireStore(c *gin.Context) bool {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error: models.ErrorDetail{Code: "STORE_DISABLED", Message: "result storage is not configured"},
		})
		return false
	}
	return true
}

func (h *BacktestHandler) loadRun(c *gin.Context) (*sqlite.Run, bool) {
	if !h.requireStore(c) {
		return nil, false
	}
	run, err := h.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return run, true
}

func writeCSV(c *gin.Context, filename string, write func(*gin.Context) error) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := write(c); err != nil {
		log.Error().Err(err).Str("component", "backtest_handler").Msg("csv export failed")
	}
}
