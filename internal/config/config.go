package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"tradeogre-grid-bot-go/internal/models"
)

// LoadConfig reads the JSON config file into a Config.
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := &models.Config{}
	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *models.Config) {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://tradeogre.com/api/v1"
	}
	if cfg.PulseIntervalSec <= 0 {
		cfg.PulseIntervalSec = 5
	}
	if cfg.CallsPerMinute <= 0 {
		cfg.CallsPerMinute = 60
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryInitialDelayMs <= 0 {
		cfg.RetryInitialDelayMs = 1000
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 5
	}
	if cfg.StatusEveryCycles < 0 {
		cfg.StatusEveryCycles = 0
	}
	if cfg.MinNotionalValue <= 0 {
		cfg.MinNotionalValue = 1.0
	}
}

// Validate rejects configurations the controller could not run with.
// These are precondition errors: fatal before any network call.
func Validate(cfg *models.Config) error {
	if cfg.Market == "" || !strings.Contains(cfg.Market, "-") {
		return fmt.Errorf("market must be in BASE-QUOTE form, got %q", cfg.Market)
	}
	if cfg.TotalQuantity <= 0 {
		return fmt.Errorf("total_quantity must be positive, got %v", cfg.TotalQuantity)
	}
	if cfg.UpperBound <= 0 {
		return fmt.Errorf("upper_bound must be positive, got %v", cfg.UpperBound)
	}
	if cfg.Buffer < 0 {
		return fmt.Errorf("buffer must not be negative, got %v", cfg.Buffer)
	}
	if cfg.GridCount < 1 {
		return fmt.Errorf("grid_count must be at least 1, got %d", cfg.GridCount)
	}
	if cfg.MaxPriceDeviation <= 0 || cfg.MaxPriceDeviation > 1 {
		return fmt.Errorf("max_price_deviation must be in (0, 1], got %v", cfg.MaxPriceDeviation)
	}
	if cfg.MaxPosition <= 0 {
		return fmt.Errorf("max_position must be positive, got %v", cfg.MaxPosition)
	}
	if cfg.MaxDailyLoss <= 0 {
		return fmt.Errorf("max_daily_loss must be positive, got %v", cfg.MaxDailyLoss)
	}
	if !cfg.DryRun && cfg.APIKeyFile == "" {
		return fmt.Errorf("api_key_file is required unless dry_run is set")
	}
	return nil
}

// LoadAPIKey reads exchange credentials from a two-line file: the key
// on the first line, the secret on the second. The values are consumed
// as opaque strings and never logged.
func LoadAPIKey(path string) (key, secret string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read key file: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 2 {
		return "", "", fmt.Errorf("key file %s must contain key on line 1 and secret on line 2", path)
	}

	key = strings.TrimSpace(lines[0])
	secret = strings.TrimSpace(lines[1])
	if key == "" || secret == "" {
		return "", "", fmt.Errorf("key file %s has an empty key or secret", path)
	}
	return key, secret, nil
}
