// Package safety evaluates the emergency-stop predicates once per
// monitoring cycle. A tripped stop latches in the bot state and ends
// all trading for the rest of the process lifetime.
package safety

import (
	"math"

	"go.uber.org/zap"

	"tradeogre-grid-bot-go/internal/exchange"
	"tradeogre-grid-bot-go/internal/models"
)

// Stop reasons, recorded in the bot state when the matching predicate
// trips.
const (
	ReasonFailureLimit   = "consecutive failure limit reached"
	ReasonDailyLoss      = "daily loss limit exceeded"
	ReasonPriceDeviation = "price moved beyond deviation limit"
	ReasonPositionLimit  = "sell exposure above position limit"
)

// Monitor checks the stop predicates in a fixed order. Once any
// predicate trips, the stop latches: every later check reports stopped
// without re-evaluating anything.
type Monitor struct {
	cfg      *models.Config
	state    *models.BotState
	exchange exchange.Exchange
	logger   *zap.SugaredLogger
}

// New builds a monitor over the shared bot state.
func New(cfg *models.Config, state *models.BotState, ex exchange.Exchange, logger *zap.SugaredLogger) *Monitor {
	return &Monitor{cfg: cfg, state: state, exchange: ex, logger: logger}
}

// Check evaluates the predicates and returns true when the bot must
// stop. Order matters: the latch first, then failure streak, daily
// loss, price deviation, position size. When several hold at once the
// earliest one supplies the recorded reason.
func (m *Monitor) Check() bool {
	if m.state.EmergencyStop {
		return true
	}

	if m.state.ConsecutiveFailures >= m.cfg.MaxConsecutiveFailures {
		return m.trip(ReasonFailureLimit)
	}

	if m.state.DailyPnL < -m.cfg.MaxDailyLoss {
		return m.trip(ReasonDailyLoss)
	}

	if stopped := m.checkPriceDeviation(); stopped {
		return true
	}

	if m.state.SellExposure() > m.cfg.MaxPosition {
		return m.trip(ReasonPositionLimit)
	}

	return false
}

// checkPriceDeviation compares the current price against the last one
// observed. A ticker fetch failure counts toward the failure streak
// and skips this predicate for the cycle; it is not itself a stop. The
// first successful observation only seeds the reference price.
func (m *Monitor) checkPriceDeviation() bool {
	ticker, err := m.exchange.GetTicker(m.cfg.Market)
	if err != nil {
		m.state.RecordFailure()
		m.logger.Warnf("ticker unavailable for %s, skipping price deviation check: %v", m.cfg.Market, err)
		return false
	}

	price := ticker.Price
	if price <= 0 {
		m.logger.Warnf("ticker for %s reported non-positive price %.8f, skipping price deviation check", m.cfg.Market, price)
		return false
	}

	if m.state.LastPrice > 0 {
		deviation := math.Abs(price-m.state.LastPrice) / m.state.LastPrice
		if deviation > m.cfg.MaxPriceDeviation {
			m.logger.Errorf("price moved %.2f%% (%.8f -> %.8f), limit %.2f%%",
				deviation*100, m.state.LastPrice, price, m.cfg.MaxPriceDeviation*100)
			return m.trip(ReasonPriceDeviation)
		}
	}

	m.state.LastPrice = price
	return false
}

// trip latches the emergency stop with the given reason.
func (m *Monitor) trip(reason string) bool {
	m.state.EmergencyStop = true
	m.state.StopReason = reason
	m.logger.Errorf("EMERGENCY STOP: %s", reason)
	return true
}
