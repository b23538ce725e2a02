package exchange

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jxskiss/base62"
	"go.uber.org/zap"

	"tradeogre-grid-bot-go/internal/models"
)

// Paper is the dry-run Exchange: no network, an in-memory order book
// and balance sheet, locally-unique synthesized order ids. Live and
// dry-run runs drive exactly the same controller/ledger code paths.
type Paper struct {
	ticker   models.Ticker
	balances map[string]models.Balance
	orders   map[string]models.Order
	seq      atomic.Int64
	logger   *zap.SugaredLogger
}

// NewPaper builds a paper exchange seeded with a ticker snapshot and
// starting balances.
func NewPaper(ticker models.Ticker, balances map[string]models.Balance, logger *zap.SugaredLogger) *Paper {
	book := make(map[string]models.Balance, len(balances))
	for currency, balance := range balances {
		book[currency] = balance
	}
	return &Paper{
		ticker:   ticker,
		balances: book,
		orders:   make(map[string]models.Order),
		logger:   logger,
	}
}

// GetTicker returns the current simulated market snapshot.
func (p *Paper) GetTicker(market string) (*models.Ticker, error) {
	snapshot := p.ticker
	return &snapshot, nil
}

// SetTicker moves the simulated market.
func (p *Paper) SetTicker(ticker models.Ticker) {
	p.ticker = ticker
}

// GetBalances returns the simulated balances.
func (p *Paper) GetBalances() (map[string]models.Balance, error) {
	out := make(map[string]models.Balance, len(p.balances))
	for currency, balance := range p.balances {
		out[currency] = balance
	}
	return out, nil
}

// GetOpenOrders lists the simulated resting orders for a market.
func (p *Paper) GetOpenOrders(market string) ([]models.Order, error) {
	orders := make([]models.Order, 0, len(p.orders))
	for _, order := range p.orders {
		if order.Market == market {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

// PlaceOrder books a simulated order under a synthesized id.
func (p *Paper) PlaceOrder(market string, side models.Side, price, quantity float64) (*models.Order, error) {
	if err := validateOrderParams(market, price, quantity); err != nil {
		return nil, err
	}

	order := models.Order{
		ID:       p.nextID(),
		Market:   market,
		Side:     side,
		Price:    price,
		Quantity: quantity,
	}
	p.orders[order.ID] = order
	p.logger.Infof("[dry run] %s order booked: %.8f %s @ %.8f (id %s)", side, quantity, market, price, order.ID)
	return &order, nil
}

// CancelOrder removes one simulated order, or all of them.
func (p *Paper) CancelOrder(id string) error {
	if id == CancelAll {
		p.orders = make(map[string]models.Order)
		return nil
	}
	if _, ok := p.orders[id]; !ok {
		return fmt.Errorf("order %s not found", id)
	}
	delete(p.orders, id)
	return nil
}

// Fill removes a simulated order as if the market took it. Used by the
// simulated fill oracle so the paper book tracks its decisions.
func (p *Paper) Fill(id string) {
	delete(p.orders, id)
}

// nextID synthesizes a locally-unique order id. base62 keeps it short
// while the sequence counter guarantees uniqueness within a run.
func (p *Paper) nextID() string {
	n := time.Now().UnixNano() + p.seq.Add(1)
	return "sim-" + string(base62.FormatInt(n))
}
