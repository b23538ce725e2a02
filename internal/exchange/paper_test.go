package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradeogre-grid-bot-go/internal/models"
)

func newTestPaper() *Paper {
	return NewPaper(
		models.Ticker{Bid: 0.00059, Ask: 0.0006, Price: 0.0006},
		map[string]models.Balance{"AEGS": {Available: 9000}},
		zap.NewNop().Sugar(),
	)
}

func TestPaperOrderBook(t *testing.T) {
	p := newTestPaper()

	first, err := p.PlaceOrder("AEGS-USDT", models.Sell, 0.001, 3000)
	require.NoError(t, err)
	second, err := p.PlaceOrder("AEGS-USDT", models.Sell, 0.002, 3000)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	open, err := p.GetOpenOrders("AEGS-USDT")
	require.NoError(t, err)
	assert.Len(t, open, 2)

	// A fill removes the order from the book exactly like the market
	// taking it.
	p.Fill(first.ID)
	open, err = p.GetOpenOrders("AEGS-USDT")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)
}

func TestPaperRejectsInvalidOrders(t *testing.T) {
	p := newTestPaper()

	_, err := p.PlaceOrder("AEGSUSDT", models.Sell, 0.001, 3000)
	assert.Error(t, err)
	_, err = p.PlaceOrder("AEGS-USDT", models.Sell, -1, 3000)
	assert.Error(t, err)
}

func TestPaperCancelAll(t *testing.T) {
	p := newTestPaper()

	_, err := p.PlaceOrder("AEGS-USDT", models.Sell, 0.001, 3000)
	require.NoError(t, err)
	_, err = p.PlaceOrder("AEGS-USDT", models.Buy, 0.0005, 3000)
	require.NoError(t, err)

	require.NoError(t, p.CancelOrder(CancelAll))

	open, err := p.GetOpenOrders("AEGS-USDT")
	require.NoError(t, err)
	assert.Empty(t, open)

	assert.Error(t, p.CancelOrder("missing-id"))
}
