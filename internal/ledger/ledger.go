// Package ledger owns the authoritative in-process view of the orders
// this bot has placed: the initial ladder, fill detection and
// opposite-side replacement.
package ledger

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"tradeogre-grid-bot-go/internal/exchange"
	"tradeogre-grid-bot-go/internal/models"
)

// Ledger tracks every order the bot believes open and converts fills
// into replacement orders one grid step toward the opposite side. It
// is driven from a single goroutine; the exchange holds the truth and
// the ledger only reconciles against it.
type Ledger struct {
	cfg      *models.Config
	state    *models.BotState
	exchange exchange.Exchange
	oracle   FillOracle
	logger   *zap.SugaredLogger

	// spacing is (upper - lower) / grid_count, fixed when the ladder
	// is placed.
	spacing float64
}

// New builds a ledger around the shared bot state. The fill oracle
// decides production vs dry-run fill detection.
func New(cfg *models.Config, state *models.BotState, ex exchange.Exchange, oracle FillOracle, logger *zap.SugaredLogger) *Ledger {
	return &Ledger{
		cfg:      cfg,
		state:    state,
		exchange: ex,
		oracle:   oracle,
		logger:   logger,
	}
}

// SetSpacing fixes the replacement price step. Needed when resuming
// from a persisted state without re-placing the ladder.
func (l *Ledger) SetSpacing(spacing float64) {
	l.spacing = spacing
}

// Spacing returns the replacement price step.
func (l *Ledger) Spacing() float64 {
	return l.spacing
}

// OpenOrderCount returns the number of orders believed open.
func (l *Ledger) OpenOrderCount() int {
	return len(l.state.Orders)
}

// PlaceInitialGrid rests one sell order per level, TotalQuantity split
// evenly across the ladder. It returns the number of orders placed;
// the caller decides whether a partial ladder is enough to proceed.
// The context is checked before every placement so no new rung goes
// out after cancellation.
func (l *Ledger) PlaceInitialGrid(ctx context.Context, levels []models.GridLevel, spacing float64) int {
	l.spacing = spacing
	quantity := l.cfg.TotalQuantity / float64(len(levels))

	placed := 0
	for _, level := range levels {
		if ctx.Err() != nil {
			l.logger.Infof("stop requested, halting ladder placement after %d orders", placed)
			return placed
		}

		if quantity*level.Price < l.cfg.MinNotionalValue {
			l.logger.Warnf("skipping rung %d: notional %.4f below minimum %.2f (%.8f @ %.8f)",
				level.Index, quantity*level.Price, l.cfg.MinNotionalValue, quantity, level.Price)
			continue
		}

		order, err := l.exchange.PlaceOrder(l.cfg.Market, models.Sell, level.Price, quantity)
		if err != nil {
			l.state.RecordFailure()
			l.logger.Errorf("failed to place sell order for rung %d (%s %.8f @ %.8f): %v",
				level.Index, l.cfg.Market, quantity, level.Price, err)
			if l.state.ConsecutiveFailures >= l.cfg.MaxConsecutiveFailures {
				l.logger.Errorf("aborting ladder placement after %d consecutive failures", l.state.ConsecutiveFailures)
				return placed
			}
			continue
		}

		l.state.RecordSuccess()
		l.track(order)
		placed++
		l.logger.Infof("sell order placed: rung %d, %.8f %s @ %.8f (id %s)",
			level.Index, quantity, l.cfg.Market, level.Price, order.ID)
	}
	return placed
}

// Reconcile asks the oracle which tracked orders filled and replaces
// each fill with the opposite side one grid step away. A failed
// replacement keeps the filled order's record, so the same id is
// detected again next cycle and the rung is retried rather than
// silently dropped.
func (l *Ledger) Reconcile(ctx context.Context) error {
	filled, err := l.oracle.FilledOrders(l.state.Orders)
	if err != nil {
		l.state.RecordFailure()
		l.logger.Errorf("failed to fetch open orders for %s: %v", l.cfg.Market, err)
		return err
	}
	l.state.RecordSuccess()

	if len(filled) == 0 {
		return nil
	}
	sort.Strings(filled)

	for _, id := range filled {
		record := l.state.Orders[id]
		l.logger.Infof("%s order filled: %.8f %s @ %.8f (id %s)",
			record.Side, record.Quantity, record.Market, record.Price, id)

		if ctx.Err() != nil {
			// Shutdown observed: no replacements, only cleanup from
			// here on. The record stays so nothing is lost if the
			// process resumes.
			return ctx.Err()
		}

		l.replace(record)
	}
	return nil
}

// replace converts one filled order into its opposite-side successor.
func (l *Ledger) replace(filled models.OrderRecord) {
	side := filled.Side.Opposite()
	price := filled.Price + l.spacing
	if side == models.Buy {
		price = filled.Price - l.spacing
	}

	if price <= 0 {
		l.logger.Warnf("dropping rung: replacement %s price %.8f not positive (filled %s @ %.8f)",
			side, price, filled.Side, filled.Price)
		l.untrack(filled.ID)
		l.state.TotalTrades++
		return
	}

	if filled.Quantity*price < l.cfg.MinNotionalValue {
		l.logger.Warnf("skipping replacement %s order: notional %.4f below minimum %.2f (%.8f @ %.8f)",
			side, filled.Quantity*price, l.cfg.MinNotionalValue, filled.Quantity, price)
		l.untrack(filled.ID)
		l.state.TotalTrades++
		return
	}

	order, err := l.exchange.PlaceOrder(filled.Market, side, price, filled.Quantity)
	if err != nil {
		// Keep the filled record: it stays absent from the exchange,
		// so next cycle re-detects it and retries the replacement.
		l.state.RecordFailure()
		l.logger.Errorf("failed to place replacement %s order (%s %.8f @ %.8f): %v",
			side, filled.Market, filled.Quantity, price, err)
		return
	}

	l.untrack(filled.ID)
	l.track(order)
	l.state.TotalTrades++
	l.state.RecordSuccess()
	l.logger.Infof("replacement %s order placed: %.8f %s @ %.8f (id %s)",
		side, order.Quantity, order.Market, order.Price, order.ID)
}

// CancelAll best-effort cancels every tracked order. Failures are
// logged and do not interrupt the sweep.
func (l *Ledger) CancelAll() {
	if len(l.state.Orders) == 0 {
		return
	}

	l.logger.Infof("cancelling %d open orders", len(l.state.Orders))
	if err := l.exchange.CancelOrder(exchange.CancelAll); err != nil {
		l.logger.Errorf("failed to cancel open orders: %v", err)
		return
	}
	l.state.Orders = make(map[string]models.OrderRecord)
}

func (l *Ledger) track(order *models.Order) {
	l.state.Orders[order.ID] = models.OrderRecord{
		ID:       order.ID,
		Side:     order.Side,
		Price:    order.Price,
		Quantity: order.Quantity,
		Market:   order.Market,
		PlacedAt: time.Now().UTC(),
	}
}

func (l *Ledger) untrack(id string) {
	delete(l.state.Orders, id)
}
