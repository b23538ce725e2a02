package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeogre-grid-bot-go/internal/models"
)

func TestSaveAndLoadState(t *testing.T) {
	repo, err := NewBadgerRepository(t.TempDir())
	require.NoError(t, err)
	defer repo.Close()

	state := models.NewBotState("bot-a")
	state.TotalTrades = 7
	state.LastPrice = 0.00125
	state.Orders["abc"] = models.OrderRecord{
		ID: "abc", Side: models.Sell, Price: 0.002, Quantity: 1500, Market: "AEGS-USDT",
	}

	require.NoError(t, repo.SaveState(state))

	loaded, err := repo.LoadState("bot-a")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 7, loaded.TotalTrades)
	assert.Equal(t, 0.00125, loaded.LastPrice)
	require.Contains(t, loaded.Orders, "abc")
	assert.Equal(t, models.Sell, loaded.Orders["abc"].Side)
}

func TestLoadStateMissing(t *testing.T) {
	repo, err := NewBadgerRepository(t.TempDir())
	require.NoError(t, err)
	defer repo.Close()

	loaded, err := repo.LoadState("never-saved")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSaveStateOverwrites(t *testing.T) {
	repo, err := NewBadgerRepository(t.TempDir())
	require.NoError(t, err)
	defer repo.Close()

	state := models.NewBotState("bot-b")
	require.NoError(t, repo.SaveState(state))

	state.TotalTrades = 3
	require.NoError(t, repo.SaveState(state))

	loaded, err := repo.LoadState("bot-b")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 3, loaded.TotalTrades)
}
