package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sma-backtest/internal/api/handlers"
	"sma-backtest/internal/api/middleware"
	"sma-backtest/internal/backtest"
	"sma-backtest/internal/data"
	"sma-backtest/internal/metrics"
	"sma-backtest/internal/store/sqlite"
)

// Deps is everything the router needs. Client and Store may be nil.
type Deps struct {
	Client       *data.CoinGeckoClient
	Store        *sqlite.Store
	Metrics      *metrics.Metrics
	Options      backtest.Options
	CORSOrigins  []string
	CoinsPath    string
	PresetDir    string
	CompareLimit int
	Timeout      time.Duration
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) *gin.Engine {
	if d.Metrics == nil {
		d.Metrics = metrics.NewMetrics()
	}

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS(d.CORSOrigins))
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics(d.Metrics))

	backtestHandler := handlers.NewBacktestHandler(handlers.BacktestDeps{
		Client:       d.Client,
		Store:        d.Store,
		Metrics:      d.Metrics,
		Options:      d.Options,
		CompareLimit: d.CompareLimit,
		Timeout:      d.Timeout,
	})
	strategyHandler := handlers.NewStrategyHandler(d.PresetDir)
	coinsHandler := handlers.NewCoinsHandler(d.CoinsPath, d.Client)
	priceHandler := handlers.NewPriceHandler(d.Client, nil)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "ok"}
		if d.Store != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := d.Store.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": err.Error()})
				return
			}
			status["store"] = "ok"
		}
		c.JSON(http.StatusOK, status)
	})
	router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/backtest", backtestHandler.RunBacktest)
		api.GET("/backtest", backtestHandler.ListBacktests)
		api.GET("/backtest/:id", backtestHandler.GetBacktest)
		api.GET("/backtest/:id/trades", backtestHandler.GetTrades)
		api.GET("/backtest/:id/equity", backtestHandler.GetEquity)
		api.DELETE("/backtest/:id", backtestHandler.DeleteBacktest)
		api.POST("/backtest/compare", backtestHandler.CompareBacktests)

		api.GET("/strategies", strategyHandler.ListStrategies)
		api.GET("/strategies/presets", strategyHandler.ListPresets)
		api.GET("/coins", coinsHandler.ListCoins)
		api.GET("/coins/:id", coinsHandler.GetCoin)
		api.GET("/price", priceHandler.GetPrice)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Not found"}})
	})
	return router
}
