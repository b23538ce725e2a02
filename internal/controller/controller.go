// Package controller drives the bot through its lifecycle: validate
// the market, place the ladder, then monitor until stopped.
package controller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tradeogre-grid-bot-go/internal/exchange"
	"tradeogre-grid-bot-go/internal/grid"
	"tradeogre-grid-bot-go/internal/ledger"
	"tradeogre-grid-bot-go/internal/models"
	"tradeogre-grid-bot-go/internal/persistence"
	"tradeogre-grid-bot-go/internal/reporter"
	"tradeogre-grid-bot-go/internal/safety"
)

// State is one phase of the controller lifecycle.
type State string

const (
	StateInit             State = "INIT"
	StateValidating       State = "VALIDATING"
	StatePlacingGrid      State = "PLACING_GRID"
	StateMonitoring       State = "MONITORING"
	StateStopping         State = "STOPPING"
	StateEmergencyStopped State = "EMERGENCY_STOPPED"
	StateTerminated       State = "TERMINATED"
)

// spreadWarnRatio is the bid/ask spread above which validation logs a
// thin-market warning.
const spreadWarnRatio = 0.10

// Controller owns the run from startup to the final order sweep. All
// trading happens on the calling goroutine; the context is the only
// stop signal besides the safety monitor.
type Controller struct {
	cfg      *models.Config
	botState *models.BotState
	exchange exchange.Exchange
	ledger   *ledger.Ledger
	monitor  *safety.Monitor
	repo     persistence.StateRepository
	reporter *reporter.Reporter
	logger   *zap.SugaredLogger

	state State
	sleep func(context.Context, time.Duration)
}

// New wires the controller. repo may be nil, in which case no state is
// persisted or restored.
func New(cfg *models.Config, botState *models.BotState, ex exchange.Exchange, l *ledger.Ledger, monitor *safety.Monitor, repo persistence.StateRepository, rep *reporter.Reporter, logger *zap.SugaredLogger) *Controller {
	return &Controller{
		cfg:      cfg,
		botState: botState,
		exchange: ex,
		ledger:   l,
		monitor:  monitor,
		repo:     repo,
		reporter: rep,
		logger:   logger,
		state:    StateInit,
		sleep:    sleepWithContext,
	}
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	return c.state
}

// Run executes the full lifecycle and blocks until the bot terminates.
// It returns an error when startup or validation fails; a monitoring
// run that ends in a clean or emergency stop returns nil, with the
// outcome recorded in the bot state.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Infof("bot %s starting on %s (dry run: %v)", c.botState.BotID, c.cfg.Market, c.cfg.DryRun)

	if err := c.initialize(); err != nil {
		c.terminate()
		return err
	}

	lower, err := c.validate()
	if err != nil {
		c.terminate()
		return err
	}

	if err := c.placeGrid(ctx, lower); err != nil {
		c.cleanup()
		return err
	}

	c.monitorLoop(ctx)
	c.cleanup()
	return nil
}

// initialize probes connectivity and restores any persisted state.
func (c *Controller) initialize() error {
	c.transition(StateInit)

	if _, err := c.exchange.GetTicker(c.cfg.Market); err != nil {
		return fmt.Errorf("exchange unreachable: %w", err)
	}

	if c.repo == nil {
		return nil
	}
	restored, err := c.repo.LoadState(c.botState.BotID)
	if err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	if restored == nil {
		c.logger.Info("no persisted state found, starting fresh")
		return nil
	}
	if restored.EmergencyStop {
		return fmt.Errorf("persisted state is emergency-stopped (%s), refusing to resume", restored.StopReason)
	}

	c.botState.TotalTrades = restored.TotalTrades
	c.botState.DailyPnL = restored.DailyPnL
	c.botState.LastPrice = restored.LastPrice
	c.botState.Orders = restored.Orders
	if c.botState.Orders == nil {
		c.botState.Orders = make(map[string]models.OrderRecord)
	}
	c.logger.Infof("restored persisted state: %d open orders, %d trades", len(c.botState.Orders), c.botState.TotalTrades)
	return nil
}

// validate checks the market and the account before any order goes
// out, and returns the ladder's lower bound.
func (c *Controller) validate() (float64, error) {
	c.transition(StateValidating)

	ticker, err := c.exchange.GetTicker(c.cfg.Market)
	if err != nil {
		return 0, fmt.Errorf("fetch ticker for %s: %w", c.cfg.Market, err)
	}
	if ticker.Ask <= 0 {
		return 0, fmt.Errorf("market %s has no ask price", c.cfg.Market)
	}

	lower := ticker.Ask + c.cfg.Buffer
	if c.cfg.UpperBound <= lower {
		return 0, fmt.Errorf("upper bound %.8f not above ladder start %.8f (ask %.8f + buffer %.8f)",
			c.cfg.UpperBound, lower, ticker.Ask, c.cfg.Buffer)
	}

	if ticker.Bid > 0 && (ticker.Ask-ticker.Bid)/ticker.Ask > spreadWarnRatio {
		c.logger.Warnf("wide spread on %s: bid %.8f, ask %.8f", c.cfg.Market, ticker.Bid, ticker.Ask)
	}

	if err := c.checkBalance(); err != nil {
		return 0, err
	}

	c.logger.Infof("validation passed: ladder %.8f to %.8f over %d levels", lower, c.cfg.UpperBound, c.cfg.GridCount)
	return lower, nil
}

// checkBalance verifies the base currency can cover the whole ladder.
func (c *Controller) checkBalance() error {
	balances, err := c.exchange.GetBalances()
	if err != nil {
		return fmt.Errorf("fetch balances: %w", err)
	}

	base := strings.SplitN(c.cfg.Market, "-", 2)[0]
	balance, ok := balances[base]
	if !ok || balance.Available < c.cfg.TotalQuantity {
		return fmt.Errorf("insufficient %s balance: have %.8f available, need %.8f",
			base, balance.Available, c.cfg.TotalQuantity)
	}
	return nil
}

// placeGrid rests the initial sell ladder, or adopts the restored one.
func (c *Controller) placeGrid(ctx context.Context, lower float64) error {
	c.transition(StatePlacingGrid)

	spacing := c.cfg.GridSpacing(lower)
	if len(c.botState.Orders) > 0 {
		c.ledger.SetSpacing(spacing)
		c.logger.Infof("resuming with %d restored orders, spacing %.8f", len(c.botState.Orders), spacing)
		return nil
	}

	levels := grid.Generate(lower, c.cfg.UpperBound, c.cfg.GridCount)
	if levels == nil {
		return fmt.Errorf("no valid grid for bounds %.8f to %.8f with %d levels", lower, c.cfg.UpperBound, c.cfg.GridCount)
	}

	placed := c.ledger.PlaceInitialGrid(ctx, levels, spacing)
	if placed == 0 {
		return fmt.Errorf("no orders placed out of %d levels", len(levels))
	}
	if placed < len(levels) {
		c.logger.Warnf("partial ladder: %d of %d orders placed, continuing", placed, len(levels))
	}
	c.persist()
	return nil
}

// monitorLoop runs safety checks and fill reconciliation until the
// context is cancelled or the safety monitor trips.
func (c *Controller) monitorLoop(ctx context.Context) {
	c.transition(StateMonitoring)

	for cycle := 1; ; cycle++ {
		if ctx.Err() != nil {
			c.logger.Info("stop requested, leaving monitoring")
			c.transition(StateStopping)
			return
		}

		if c.monitor.Check() {
			c.transition(StateEmergencyStopped)
			return
		}

		if err := c.ledger.Reconcile(ctx); err != nil {
			c.logger.Warnf("reconciliation cycle %d failed: %v", cycle, err)
		}

		c.persist()

		if c.cfg.StatusEveryCycles > 0 && cycle%c.cfg.StatusEveryCycles == 0 {
			c.reporter.Status(cycle)
		}

		c.sleep(ctx, c.cfg.PulseInterval())
	}
}

// cleanup cancels every resting order, persists the final snapshot and
// prints the run summary.
func (c *Controller) cleanup() {
	c.ledger.CancelAll()
	c.persist()
	c.reporter.Final()
	c.terminate()
}

func (c *Controller) terminate() {
	c.transition(StateTerminated)
}

// persist saves a snapshot; persistence failures are logged, never
// fatal.
func (c *Controller) persist() {
	if c.repo == nil {
		return
	}
	if err := c.repo.SaveState(c.botState); err != nil {
		c.logger.Errorf("failed to persist state: %v", err)
	}
}

func (c *Controller) transition(next State) {
	if c.state == next {
		return
	}
	c.logger.Infof("state: %s -> %s", c.state, next)
	c.state = next
}

// sleepWithContext waits out the pulse interval but wakes immediately
// on cancellation.
func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
