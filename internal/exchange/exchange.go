package exchange

import "tradeogre-grid-bot-go/internal/models"

// CancelAll is the sentinel order id that cancels every open order.
const CancelAll = "all"

// Exchange defines the operations the trading core depends on. Every
// method returns an explicit error instead of panicking so call sites
// handle both outcomes; transport and authentication details stay
// behind this interface.
type Exchange interface {
	// GetTicker returns the market snapshot for a market.
	GetTicker(market string) (*models.Ticker, error)

	// GetBalances returns available/held amounts per currency.
	GetBalances() (map[string]models.Balance, error)

	// GetOpenOrders returns the exchange's current open orders for a
	// market. This is the source of truth reconciliation diffs against.
	GetOpenOrders(market string) ([]models.Order, error)

	// PlaceOrder submits a limit order and returns it with the
	// exchange-assigned id.
	PlaceOrder(market string, side models.Side, price, quantity float64) (*models.Order, error)

	// CancelOrder cancels one order by id, or every open order when
	// given CancelAll.
	CancelOrder(id string) error
}
