package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sma-backtest/internal/model"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	return p
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultParams(), c.Strategy)
	assert.Equal(t, "coingecko", c.Data.Source)
	assert.Equal(t, "8080", c.Server.Port)
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "c.yaml", `
strategy:
  short_period: 3
  long_period: 7
  slippage_pct: 0
cache:
  ttl: 5m
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Strategy.ShortPeriod)
	assert.Equal(t, 7, c.Strategy.LongPeriod)
	assert.Equal(t, 0.0, c.Strategy.SlippagePct)
	assert.Equal(t, 0.05, c.Strategy.CommissionPct)
	assert.Equal(t, 10000.0, c.Strategy.InitialCapital)
	assert.Equal(t, 5*time.Minute, c.Cache.TTL)
	assert.Equal(t, "memory", c.Cache.Backend)
}

func TestLoadStrategyFileWithOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "strategies/s.yaml", `
strategy:
  short_period: 10
  long_period: 30
  size_percent: 50
`)
	p := writeFile(t, dir, "c.yaml", `
strategy_file: strategies/s.yaml
strategy:
  size_percent: 25
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 10, c.Strategy.ShortPeriod)
	assert.Equal(t, 30, c.Strategy.LongPeriod)
	assert.Equal(t, 25.0, c.Strategy.SizePercent)
}

func TestLoadShippedConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "configs", "backtest.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 50, c.Strategy.ShortPeriod)
	assert.Equal(t, 200, c.Strategy.LongPeriod)
	assert.Equal(t, 180, c.Data.Days)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"bad strategy":     func(c *Config) { c.Strategy.ShortPeriod = 50; c.Strategy.LongPeriod = 10 },
		"unknown source":   func(c *Config) { c.Data.Source = "ftp" },
		"csv without path": func(c *Config) { c.Data.Source = "csv" },
		"zero days":        func(c *Config) { c.Data.Days = 0 },
		"redis no addr":    func(c *Config) { c.Cache.Backend = "redis" },
		"bad backend":      func(c *Config) { c.Cache.Backend = "disk" },
		"no port":          func(c *Config) { c.Server.Port = "" },
		"negative nominal": func(c *Config) { c.Backtest.NominalDays = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
	assert.NoError(t, Default().Validate())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CACHE_TTL", "10m")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9090", c.Server.Port)
	assert.Equal(t, "redis", c.Cache.Backend)
	assert.Equal(t, 2, c.Cache.RedisDB)
	assert.Equal(t, 10*time.Minute, c.Cache.TTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.Server.CORSOrigins)
	assert.Equal(t, "/tmp/x.db", c.Store.Path)
}

func TestConversions(t *testing.T) {
	c := Default()
	opts := c.Data.ClientOptions(nil, nil)
	assert.Equal(t, 5.0, opts.RequestsPerSec)
	assert.Equal(t, "bitcoin", c.Data.MarketChart().CoinID)
	assert.Equal(t, "memory", c.Cache.CacheOptions().Backend)
	assert.Equal(t, 30.0, c.Backtest.Options().NominalDays)
}
