package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"sma-backtest/internal/api"
	"sma-backtest/internal/config"
	"sma-backtest/internal/data"
	"sma-backtest/internal/logging"
	"sma-backtest/internal/metrics"
	"sma-backtest/internal/store/sqlite"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("CONFIG_FILE"), "Path to YAML config (optional)")
	flag.Parse()

	envErr := godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logging.Setup(logging.FromEnv())
		log.Fatal().Err(err).Str("path", *cfgPath).Msg("failed to load config")
	}
	logging.Setup(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if envErr != nil {
		log.Debug().Msg(".env file not found, using process environment")
	}

	m := metrics.NewMetrics()

	cache, err := data.NewCache(cfg.Cache.CacheOptions())
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("failed to set up cache")
	}
	client := data.NewCoinGeckoClient(cfg.Data.ClientOptions(cache, m))

	var store *sqlite.Store
	if cfg.Store.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
			log.Fatal().Err(err).Msg("failed to create store directory")
		}
		store, err = sqlite.Open(cfg.Store.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("failed to open store")
		}
		defer store.Close()
		log.Info().Str("path", cfg.Store.Path).Msg("result store opened")
	} else {
		log.Warn().Msg("store.path is empty, runs will not be persisted")
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := api.NewRouter(api.Deps{
		Client:      client,
		Store:       store,
		Metrics:     m,
		Options:     cfg.Backtest.Options(),
		CORSOrigins: cfg.Server.CORSOrigins,
		CoinsPath:   data.DefaultCoinsPath(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Server.Env).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	switch c := cache.(type) {
	case *data.MemoryCache:
		c.Close()
	case *data.RedisCache:
		_ = c.Close()
	}
}
