// Package persistence stores bot state snapshots so a restarted
// process can pick up its tracked orders instead of starting blind.
package persistence

import "tradeogre-grid-bot-go/internal/models"

// StateRepository persists and restores the full bot state.
type StateRepository interface {
	// SaveState overwrites the stored snapshot for the bot.
	SaveState(state *models.BotState) error
	// LoadState returns the stored snapshot, or (nil, nil) when no
	// snapshot exists for the bot.
	LoadState(botID string) (*models.BotState, error)
	// Close releases the underlying store.
	Close() error
}
