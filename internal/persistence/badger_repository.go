package persistence

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"tradeogre-grid-bot-go/internal/models"
)

// badgerRepository stores state snapshots in BadgerDB, keyed per bot
// so several bots can share one database directory.
type badgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository opens (or creates) the BadgerDB database at
// dbPath. Badger's own logging is disabled; errors still surface from
// the operations themselves.
func NewBadgerRepository(dbPath string) (StateRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open state database at %s: %w", dbPath, err)
	}

	return &badgerRepository{db: db}, nil
}

func stateKey(botID string) []byte {
	return []byte("bot_state/" + botID)
}

// SaveState writes the whole snapshot in one transaction.
func (r *badgerRepository) SaveState(state *models.BotState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(stateKey(state.BotID), data)
	})
}

// LoadState reads the snapshot for botID. A missing key means a fresh
// start and returns (nil, nil).
func (r *badgerRepository) LoadState(botID string) (*models.BotState, error) {
	var state models.BotState

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stateKey(botID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state for %s: %w", botID, err)
	}

	return &state, nil
}

// Close flushes and closes the database.
func (r *badgerRepository) Close() error {
	return r.db.Close()
}
