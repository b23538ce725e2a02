package ledger

import (
	"math/rand"

	"tradeogre-grid-bot-go/internal/exchange"
	"tradeogre-grid-bot-go/internal/models"
)

// FillOracle decides which tracked orders filled since the last cycle.
// The production oracle reconciles against the exchange; the dry-run
// oracle simulates fills without any network traffic. Selecting the
// oracle at construction time keeps the ledger free of dry-run
// branches.
type FillOracle interface {
	// FilledOrders returns the ids of tracked orders considered
	// filled. The tracked map is read-only for the oracle.
	FilledOrders(tracked map[string]models.OrderRecord) ([]string, error)
}

// ExchangeReconciliation detects fills by set difference: any tracked
// id absent from the exchange's open-order list has been taken.
type ExchangeReconciliation struct {
	exchange exchange.Exchange
	market   string
}

// NewExchangeReconciliation builds the production oracle.
func NewExchangeReconciliation(ex exchange.Exchange, market string) *ExchangeReconciliation {
	return &ExchangeReconciliation{exchange: ex, market: market}
}

// FilledOrders fetches the open-order set once and diffs the tracked
// ids against it, so every fill decision in a cycle rests on the same
// exchange snapshot.
func (o *ExchangeReconciliation) FilledOrders(tracked map[string]models.OrderRecord) ([]string, error) {
	open, err := o.exchange.GetOpenOrders(o.market)
	if err != nil {
		return nil, err
	}

	openIDs := make(map[string]struct{}, len(open))
	for _, order := range open {
		openIDs[order.ID] = struct{}{}
	}

	var filled []string
	for id := range tracked {
		if _, stillOpen := openIDs[id]; !stillOpen {
			filled = append(filled, id)
		}
	}
	return filled, nil
}

// SimulatedFill is the dry-run oracle: each tracked order fills with a
// fixed per-cycle probability. A seeded source makes tests
// deterministic. The optional book callback keeps the paper exchange's
// order book in step with the simulated fills.
type SimulatedFill struct {
	probability float64
	rng         *rand.Rand
	book        func(id string)
}

// NewSimulatedFill builds the dry-run oracle. book may be nil.
func NewSimulatedFill(probability float64, rng *rand.Rand, book func(id string)) *SimulatedFill {
	return &SimulatedFill{probability: probability, rng: rng, book: book}
}

// FilledOrders rolls each tracked order independently.
func (o *SimulatedFill) FilledOrders(tracked map[string]models.OrderRecord) ([]string, error) {
	var filled []string
	for id := range tracked {
		if o.rng.Float64() < o.probability {
			filled = append(filled, id)
			if o.book != nil {
				o.book(id)
			}
		}
	}
	return filled, nil
}
