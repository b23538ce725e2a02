package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeogre-grid-bot-go/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"market": "AEGS-USDT",
		"total_quantity": 9000,
		"upper_bound": 0.003,
		"grid_count": 3,
		"max_price_deviation": 0.2,
		"max_daily_loss": 50,
		"max_position": 10000,
		"dry_run": true
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://tradeogre.com/api/v1", cfg.APIBaseURL)
	assert.Equal(t, 5, cfg.PulseIntervalSec)
	assert.Equal(t, 60, cfg.CallsPerMinute)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 1000, cfg.RetryInitialDelayMs)
	assert.Equal(t, 5, cfg.MaxConsecutiveFailures)
	assert.Equal(t, 1.0, cfg.MinNotionalValue)

	assert.NoError(t, Validate(cfg))
}

func TestLoadConfigRejectsMalformedJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"market": `)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *models.Config {
		return &models.Config{
			Market:            "AEGS-USDT",
			TotalQuantity:     9000,
			UpperBound:        0.003,
			GridCount:         3,
			MaxPriceDeviation: 0.2,
			MaxDailyLoss:      50,
			MaxPosition:       10000,
			DryRun:            true,
		}
	}
	require.NoError(t, Validate(valid()))

	cases := []struct {
		name   string
		mutate func(*models.Config)
	}{
		{"missing market", func(c *models.Config) { c.Market = "" }},
		{"market without separator", func(c *models.Config) { c.Market = "AEGSUSDT" }},
		{"zero quantity", func(c *models.Config) { c.TotalQuantity = 0 }},
		{"zero upper bound", func(c *models.Config) { c.UpperBound = 0 }},
		{"negative buffer", func(c *models.Config) { c.Buffer = -0.001 }},
		{"zero grid count", func(c *models.Config) { c.GridCount = 0 }},
		{"deviation above one", func(c *models.Config) { c.MaxPriceDeviation = 1.5 }},
		{"zero deviation", func(c *models.Config) { c.MaxPriceDeviation = 0 }},
		{"zero position limit", func(c *models.Config) { c.MaxPosition = 0 }},
		{"zero loss limit", func(c *models.Config) { c.MaxDailyLoss = 0 }},
		{"live without key file", func(c *models.Config) { c.DryRun = false; c.APIKeyFile = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestLoadAPIKey(t *testing.T) {
	path := writeFile(t, "keys", "my-key\nmy-secret\n")

	key, secret, err := LoadAPIKey(path)
	require.NoError(t, err)
	assert.Equal(t, "my-key", key)
	assert.Equal(t, "my-secret", secret)
}

func TestLoadAPIKeyRejectsShortFile(t *testing.T) {
	path := writeFile(t, "keys", "only-one-line\n")
	_, _, err := LoadAPIKey(path)
	assert.Error(t, err)
}
