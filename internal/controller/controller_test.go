package controller

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradeogre-grid-bot-go/internal/ledger"
	"tradeogre-grid-bot-go/internal/models"
	"tradeogre-grid-bot-go/internal/reporter"
	"tradeogre-grid-bot-go/internal/safety"
)

// scriptedExchange drives the controller through a full run under
// test control. onOpenOrders fires on every reconciliation fetch so
// tests can cancel the run after a chosen number of cycles.
type scriptedExchange struct {
	ticker       models.Ticker
	tickerErr    error
	balances     map[string]models.Balance
	openOrders   []models.Order
	placed       []models.Order
	cancelled    []string
	nextID       int
	onOpenOrders func(call int)
	openCalls    int
}

func (e *scriptedExchange) GetTicker(market string) (*models.Ticker, error) {
	if e.tickerErr != nil {
		return nil, e.tickerErr
	}
	snapshot := e.ticker
	return &snapshot, nil
}

func (e *scriptedExchange) GetBalances() (map[string]models.Balance, error) {
	return e.balances, nil
}

func (e *scriptedExchange) GetOpenOrders(market string) ([]models.Order, error) {
	e.openCalls++
	if e.onOpenOrders != nil {
		e.onOpenOrders(e.openCalls)
	}
	return e.openOrders, nil
}

func (e *scriptedExchange) PlaceOrder(market string, side models.Side, price, quantity float64) (*models.Order, error) {
	e.nextID++
	order := models.Order{
		ID:       fmt.Sprintf("order-%04d", e.nextID),
		Market:   market,
		Side:     side,
		Price:    price,
		Quantity: quantity,
	}
	e.placed = append(e.placed, order)
	e.openOrders = append(e.openOrders, order)
	return &order, nil
}

func (e *scriptedExchange) CancelOrder(id string) error {
	e.cancelled = append(e.cancelled, id)
	return nil
}

// memoryRepo is an in-process StateRepository for controller tests.
type memoryRepo struct {
	saved  *models.BotState
	stored *models.BotState
	saves  int
}

func (r *memoryRepo) SaveState(state *models.BotState) error {
	snapshot := *state
	r.saved = &snapshot
	r.saves++
	return nil
}

func (r *memoryRepo) LoadState(botID string) (*models.BotState, error) {
	return r.stored, nil
}

func (r *memoryRepo) Close() error { return nil }

func controllerConfig() *models.Config {
	return &models.Config{
		Market:                 "AEGS-USDT",
		TotalQuantity:          9000,
		Buffer:                 0.00001,
		UpperBound:             0.003,
		GridCount:              3,
		MaxConsecutiveFailures: 5,
		MaxPriceDeviation:      0.20,
		MaxDailyLoss:           50,
		MaxPosition:            100000,
		MinNotionalValue:       1.0,
	}
}

func healthyExchange() *scriptedExchange {
	return &scriptedExchange{
		ticker: models.Ticker{Bid: 0.00059, Ask: 0.0006, Price: 0.0006},
		balances: map[string]models.Balance{
			"AEGS": {Available: 10000},
		},
	}
}

func newController(cfg *models.Config, ex *scriptedExchange, repo *memoryRepo) (*Controller, *models.BotState) {
	state := models.NewBotState("test-bot")
	logger := zap.NewNop().Sugar()
	l := ledger.New(cfg, state, ex, ledger.NewExchangeReconciliation(ex, cfg.Market), logger)
	monitor := safety.New(cfg, state, ex, logger)
	rep := reporter.New(cfg, state, logger)

	c := New(cfg, state, ex, l, monitor, nil, rep, logger)
	if repo != nil {
		c.repo = repo
	}
	c.sleep = func(context.Context, time.Duration) {}
	return c, state
}

func TestRunFullLifecycle(t *testing.T) {
	cfg := controllerConfig()
	ex := healthyExchange()
	repo := &memoryRepo{}

	ctx, cancel := context.WithCancel(context.Background())
	ex.onOpenOrders = func(call int) {
		if call >= 3 {
			cancel()
		}
	}

	c, state := newController(cfg, ex, repo)
	require.NoError(t, c.Run(ctx))

	assert.Equal(t, StateTerminated, c.State())
	assert.False(t, state.EmergencyStop)
	assert.Len(t, ex.placed, 3, "one sell per grid level")
	assert.Equal(t, []string{"all"}, ex.cancelled, "shutdown sweeps the book")
	assert.Empty(t, state.Orders)
	assert.Greater(t, repo.saves, 0, "state persisted during the run")
}

func TestRunRejectsUpperBoundBelowMarket(t *testing.T) {
	cfg := controllerConfig()
	cfg.UpperBound = 0.0005 // below ask + buffer
	ex := healthyExchange()

	c, _ := newController(cfg, ex, nil)
	err := c.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "upper bound")
	assert.Equal(t, StateTerminated, c.State())
	assert.Empty(t, ex.placed)
}

func TestRunRejectsInsufficientBalance(t *testing.T) {
	cfg := controllerConfig()
	ex := healthyExchange()
	ex.balances["AEGS"] = models.Balance{Available: 100}

	c, _ := newController(cfg, ex, nil)
	err := c.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient AEGS balance")
	assert.Empty(t, ex.placed)
}

func TestRunFailsWhenExchangeUnreachable(t *testing.T) {
	cfg := controllerConfig()
	ex := healthyExchange()
	ex.tickerErr = errors.New("no route to host")

	c, _ := newController(cfg, ex, nil)
	err := c.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange unreachable")
}

func TestRunEmergencyStopSweepsOrders(t *testing.T) {
	cfg := controllerConfig()
	cfg.MaxPosition = 5000 // the 9000 ladder trips the position limit
	ex := healthyExchange()

	c, state := newController(cfg, ex, nil)
	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, StateTerminated, c.State())
	assert.True(t, state.EmergencyStop)
	assert.Equal(t, safety.ReasonPositionLimit, state.StopReason)
	assert.Equal(t, []string{"all"}, ex.cancelled)
}

func TestRunResumesFromPersistedState(t *testing.T) {
	cfg := controllerConfig()
	ex := healthyExchange()

	stored := models.NewBotState("test-bot")
	stored.TotalTrades = 4
	stored.Orders["prev-1"] = models.OrderRecord{
		ID: "prev-1", Side: models.Sell, Price: 0.002, Quantity: 3000, Market: cfg.Market,
	}
	repo := &memoryRepo{stored: stored}
	ex.openOrders = []models.Order{{ID: "prev-1", Market: cfg.Market, Side: models.Sell, Price: 0.002, Quantity: 3000}}

	ctx, cancel := context.WithCancel(context.Background())
	ex.onOpenOrders = func(call int) { cancel() }

	c, state := newController(cfg, ex, repo)
	require.NoError(t, c.Run(ctx))

	assert.Empty(t, ex.placed, "restored ladder is adopted, not re-placed")
	assert.Equal(t, 4, state.TotalTrades)
}

func TestRunRefusesEmergencyStoppedSnapshot(t *testing.T) {
	cfg := controllerConfig()
	ex := healthyExchange()

	stored := models.NewBotState("test-bot")
	stored.EmergencyStop = true
	stored.StopReason = safety.ReasonDailyLoss
	repo := &memoryRepo{stored: stored}

	c, _ := newController(cfg, ex, repo)
	err := c.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to resume")
	assert.Empty(t, ex.placed)
}
