package models

import (
	"fmt"
	"time"
)

// Config holds every tunable of the bot. It is loaded once from a JSON
// file and treated as read-only by all components.
type Config struct {
	// Market is the TradeOgre market identifier, e.g. "AEGS-USDT".
	Market string `json:"market"`
	// APIBaseURL is the REST endpoint, e.g. "https://tradeogre.com/api/v1".
	APIBaseURL string `json:"api_base_url"`
	// APIKeyFile points at a two-line file: key on the first line,
	// secret on the second. The core never parses it beyond that.
	APIKeyFile string `json:"api_key_file"`

	// TotalQuantity is the base-currency amount deployed across the
	// whole ladder; each rung gets TotalQuantity / GridCount.
	TotalQuantity float64 `json:"total_quantity"`
	// Buffer is added to the current ask to form the ladder's lower bound.
	Buffer     float64 `json:"buffer"`
	UpperBound float64 `json:"upper_bound"`
	GridCount  int     `json:"grid_count"`

	// PulseIntervalSec is the sleep between monitoring cycles.
	PulseIntervalSec int `json:"pulse_interval_sec"`
	// StatusEveryCycles controls the periodic status line; 0 disables it.
	StatusEveryCycles int `json:"status_every_cycles"`

	MaxConsecutiveFailures int     `json:"max_consecutive_failures"`
	MaxPriceDeviation      float64 `json:"max_price_deviation"`
	MaxDailyLoss           float64 `json:"max_daily_loss"`
	MaxPosition            float64 `json:"max_position"`
	MinNotionalValue       float64 `json:"min_notional_value"`

	DryRun         bool `json:"dry_run"`
	CallsPerMinute int  `json:"calls_per_minute"`
	RetryAttempts  int  `json:"retry_attempts"`
	// RetryInitialDelayMs is the base backoff delay, doubled per attempt.
	RetryInitialDelayMs int `json:"retry_initial_delay_ms"`

	DBPath    string    `json:"db_path"`
	LogConfig LogConfig `json:"log"`
}

// GridSpacing is the price step used when replacing a filled rung with
// its opposite-side order: (upper - lower) / grid_count.
func (c *Config) GridSpacing(lowerBound float64) float64 {
	if c.GridCount <= 0 {
		return 0
	}
	return (c.UpperBound - lowerBound) / float64(c.GridCount)
}

// PulseInterval returns the monitoring sleep as a duration.
func (c *Config) PulseInterval() time.Duration {
	return time.Duration(c.PulseIntervalSec) * time.Second
}

// LogConfig mirrors the logger setup: level, output target and
// lumberjack rotation knobs.
type LogConfig struct {
	Level      string `json:"level"`
	Output     string `json:"output"` // "console", "file" or "both"
	File       string `json:"file"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

// Side is the order direction.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Ticker is the normalized market snapshot returned by GetTicker.
type Ticker struct {
	Bid    float64
	Ask    float64
	Price  float64
	High   float64
	Low    float64
	Volume float64
}

// Balance holds the available and held amounts of one currency.
type Balance struct {
	Available float64
	Held      float64
}

// Order is an exchange-reported open order.
type Order struct {
	ID       string
	Market   string
	Side     Side
	Price    float64
	Quantity float64
}

// OrderRecord is the ledger's immutable view of one order it placed.
// A fill never mutates a record; the replacement is a fresh record and
// the old one is discarded.
type OrderRecord struct {
	ID       string    `json:"id"`
	Side     Side      `json:"side"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	Market   string    `json:"market"`
	PlacedAt time.Time `json:"placed_at"`
}

// Notional is quantity * price, the monetary size of the order.
func (r OrderRecord) Notional() float64 {
	return r.Quantity * r.Price
}

// GridLevel is one rung of the ladder, immutable once generated.
type GridLevel struct {
	Index int
	Price float64
}

// BotState aggregates the process-lifetime counters and the set of
// orders currently believed open. DailyPnL is supplied externally (or
// stays 0); this bot never computes it.
type BotState struct {
	BotID               string                 `json:"bot_id"`
	StartTime           time.Time              `json:"start_time"`
	TotalTrades         int                    `json:"total_trades"`
	ConsecutiveFailures int                    `json:"consecutive_failures"`
	DailyPnL            float64                `json:"daily_pnl"`
	LastPrice           float64                `json:"last_price"`
	EmergencyStop       bool                   `json:"emergency_stop"`
	StopReason          string                 `json:"stop_reason,omitempty"`
	Orders              map[string]OrderRecord `json:"orders"`
}

// NewBotState returns a fresh state with the order set initialized.
func NewBotState(botID string) *BotState {
	return &BotState{
		BotID:     botID,
		StartTime: time.Now().UTC(),
		Orders:    make(map[string]OrderRecord),
	}
}

// RecordSuccess resets the failure streak after any exchange call that
// expected a response and got one.
func (s *BotState) RecordSuccess() {
	s.ConsecutiveFailures = 0
}

// RecordFailure bumps the failure streak.
func (s *BotState) RecordFailure() {
	s.ConsecutiveFailures++
}

// SellExposure is the aggregate quantity resting on the sell side.
func (s *BotState) SellExposure() float64 {
	var total float64
	for _, o := range s.Orders {
		if o.Side == Sell {
			total += o.Quantity
		}
	}
	return total
}

// APIError is a failure reported by the exchange itself, as opposed to
// a transport failure.
type APIError struct {
	Message string
	Status  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange error: %s (status %d)", e.Message, e.Status)
}
