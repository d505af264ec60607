package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"sma-backtest/internal/api/models"
	"sma-backtest/internal/config"
	"sma-backtest/internal/model"
)

// StrategyHandler handles strategy-related requests
type StrategyHandler struct {
	presetDir string
}

// NewStrategyHandler creates a new strategy handler. dir holds preset YAML files;
// STRATEGY_DIR overrides it.
func NewStrategyHandler(dir string) *StrategyHandler {
	if env := os.Getenv("STRATEGY_DIR"); env != "" {
		dir = env
	}
	if dir == "" {
		dir = "./configs/strategies"
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &StrategyHandler{presetDir: dir}
}

// ListStrategies handles GET /api/v1/strategies
func (h *StrategyHandler) ListStrategies(c *gin.Context) {
	d := model.DefaultParams()
	strategies := []models.StrategyInfo{
		{
			Name:        "sma_crossover",
			Description: "Long-only SMA crossover. Buys when the short average crosses above the long one and sells on the cross back below. Signals fill at the next bar's close.",
			Parameters: []models.ParameterInfo{
				{Name: "short_period", Type: "int", Description: "Short moving average window in bars (>= 1, < long_period)", Default: d.ShortPeriod},
				{Name: "long_period", Type: "int", Description: "Long moving average window in bars", Default: d.LongPeriod},
				{Name: "initial_capital", Type: "float", Description: "Starting cash in quote currency (> 0)", Default: d.InitialCapital},
				{Name: "slippage_pct", Type: "float", Description: "Adverse price adjustment per fill in percent, [0, 100)", Default: d.SlippagePct},
				{Name: "commission_pct", Type: "float", Description: "Commission on traded value in percent, [0, 100)", Default: d.CommissionPct},
				{Name: "size_percent", Type: "float", Description: "Share of cash committed on entry in percent, [0, 100]", Default: d.SizePercent},
			},
		},
	}
	c.JSON(http.StatusOK, gin.H{"strategies": strategies})
}

// ListPresets handles GET /api/v1/strategies/presets
func (h *StrategyHandler) ListPresets(c *gin.Context) {
	presets := []models.PresetInfo{}
	entries, err := os.ReadDir(h.presetDir)
	if err != nil {
		log.Warn().Err(err).Str("component", "strategy_handler").Str("dir", h.presetDir).Msg("preset directory unreadable")
		c.JSON(http.StatusOK, gin.H{"presets": presets})
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(h.presetDir, entry.Name())
		params, err := config.LoadStrategyFile(path)
		if err != nil {
			log.Warn().Err(err).Str("component", "strategy_handler").Str("file", path).Msg("skipping invalid preset")
			continue
		}
		presets = append(presets, models.PresetInfo{
			ID:     strings.TrimSuffix(entry.Name(), ".yaml"),
			File:   entry.Name(),
			Params: params,
		})
	}
	c.JSON(http.StatusOK, gin.H{"presets": presets})
}
