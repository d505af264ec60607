package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sma-backtest/internal/backtest"
	"sma-backtest/internal/data"
	"sma-backtest/internal/metrics"
	"sma-backtest/internal/model"
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	// Optional: load strategy parameters from a separate YAML (e.g. examples/strategies/*.yaml).
	// Keys set under strategy in this file override the ones loaded from StrategyFile.
	StrategyFile string               `yaml:"strategy_file"`
	Strategy     model.StrategyParams `yaml:"strategy"`
	Backtest     BacktestConfig       `yaml:"backtest"`
	Data         DataConfig           `yaml:"data"`
	Cache        CacheConfig          `yaml:"cache"`
	Store        StoreConfig          `yaml:"store"`
	Server       ServerConfig         `yaml:"server"`
	Log          LogConfig            `yaml:"log"`
}

type BacktestConfig struct {
	NominalDays float64 `yaml:"nominal_days"`
}

type DataConfig struct {
	Source         string        `yaml:"source"` // coingecko | csv
	CoinID         string        `yaml:"coin_id"`
	VsCurrency     string        `yaml:"vs_currency"`
	Days           int           `yaml:"days"`
	CSVPath        string        `yaml:"csv_path"`
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	RequestsPerSec float64       `yaml:"requests_per_sec"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetryTime   time.Duration `yaml:"max_retry_time"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend"` // none | memory | redis
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
}

type StoreConfig struct {
	// Path of the SQLite database. Empty disables persistence.
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Port        string   `yaml:"port"`
	Env         string   `yaml:"env"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Strategy: model.DefaultParams(),
		Backtest: BacktestConfig{NominalDays: backtest.DefaultNominalDays},
		Data: DataConfig{
			Source:         "coingecko",
			CoinID:         "bitcoin",
			VsCurrency:     "usd",
			Days:           90,
			RequestsPerSec: 5,
			Timeout:        30 * time.Second,
			MaxRetryTime:   30 * time.Second,
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     time.Hour,
		},
		Store: StoreConfig{Path: "./data/backtests.db"},
		Server: ServerConfig{
			Port:        "8080",
			Env:         "development",
			CORSOrigins: []string{"*"},
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads path (or the defaults when path is empty), applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		var err error
		if c, err = LoadUnchecked(path); err != nil {
			return nil, err
		}
	}
	c.ApplyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config over the defaults, but does not validate it
// or look at the environment. Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if c.StrategyFile != "" {
		strategyPath := c.StrategyFile
		if !filepath.IsAbs(strategyPath) {
			// Relative paths resolve against the config file directory first, then cwd.
			cand := filepath.Join(filepath.Dir(path), strategyPath)
			if _, err := os.Stat(cand); err == nil {
				strategyPath = cand
			}
		}
		loaded, err := LoadStrategyFile(strategyPath)
		if err != nil {
			return nil, err
		}
		// Re-apply this file's strategy keys on top of the loaded ones.
		w := strategyFileWrapper{Strategy: loaded}
		if err := yaml.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		c.Strategy = w.Strategy
	}
	return c, nil
}

type strategyFileWrapper struct {
	Strategy model.StrategyParams `yaml:"strategy"`
}

// LoadStrategyFile reads a YAML file with a top-level strategy section. Keys it does
// not set keep their default values.
func LoadStrategyFile(path string) (model.StrategyParams, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.StrategyParams{}, err
	}
	w := strategyFileWrapper{Strategy: model.DefaultParams()}
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return model.StrategyParams{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return w.Strategy, nil
}

// ApplyEnv overlays environment variables onto c. Unset variables leave c alone.
func (c *Config) ApplyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Server.Port, "API_PORT")
	setString(&c.Server.Env, "API_ENV")
	setString(&c.Data.BaseURL, "COINGECKO_BASE_URL")
	setString(&c.Data.APIKey, "COINGECKO_API_KEY")
	setString(&c.Cache.Backend, "CACHE_BACKEND")
	setString(&c.Cache.RedisAddr, "REDIS_ADDR")
	setString(&c.Cache.RedisPassword, "REDIS_PASSWORD")
	setString(&c.Store.Path, "SQLITE_PATH")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.RedisDB = n
		}
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.TTL = d
		}
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.CORSOrigins = origins
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := c.Strategy.Validate(); err != nil {
		return fmt.Errorf("strategy config invalid: %w", err)
	}
	if c.Backtest.NominalDays < 0 {
		return errors.New("backtest.nominal_days must be >= 0")
	}
	switch c.Data.Source {
	case "coingecko":
		if c.Data.CoinID == "" {
			return errors.New("data.coin_id is required for the coingecko source")
		}
		if c.Data.Days < 1 {
			return errors.New("data.days must be >= 1")
		}
	case "csv":
		if c.Data.CSVPath == "" {
			return errors.New("data.csv_path is required for the csv source")
		}
	default:
		return fmt.Errorf("data.source must be coingecko or csv, got %q", c.Data.Source)
	}
	switch strings.ToLower(c.Cache.Backend) {
	case "", "none", "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be none, memory or redis, got %q", c.Cache.Backend)
	}
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	return nil
}

// CacheOptions converts the cache section for data.NewCache.
func (c CacheConfig) CacheOptions() data.CacheOptions {
	return data.CacheOptions{
		Backend:       c.Backend,
		TTL:           c.TTL,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
	}
}

// ClientOptions converts the data section for data.NewCoinGeckoClient.
func (d DataConfig) ClientOptions(cache data.Cache, m *metrics.Metrics) data.ClientOptions {
	return data.ClientOptions{
		APIKey:         d.APIKey,
		BaseURL:        d.BaseURL,
		Timeout:        d.Timeout,
		RequestsPerSec: d.RequestsPerSec,
		MaxRetryTime:   d.MaxRetryTime,
		Cache:          cache,
		Metrics:        m,
	}
}

// MarketChart returns the coingecko request described by the data section.
func (d DataConfig) MarketChart() data.MarketChartParams {
	return data.MarketChartParams{
		CoinID:     d.CoinID,
		VsCurrency: d.VsCurrency,
		Days:       d.Days,
	}
}

// Options converts the backtest section for the engine.
func (b BacktestConfig) Options() backtest.Options {
	return backtest.Options{NominalDays: b.NominalDays}
}
