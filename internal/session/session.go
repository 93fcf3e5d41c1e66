// Package session stores bounded, TTL-scoped conversation history keyed
// by an opaque session identifier.
package session

import (
	"context"
	"time"

	"github.com/luxelabs/concierge/models"
)

// Store is the session history capability. A missing session reads as
// empty history, never as an error.
type Store interface {
	Get(ctx context.Context, sessionID string) ([]models.ConversationTurn, error)
	// Set replaces the session's history, trimmed to the store's
	// configured window, and refreshes the TTL.
	Set(ctx context.Context, sessionID string, turns []models.ConversationTurn) error
}

// Trim keeps the most recent max turns, oldest first.
func Trim(turns []models.ConversationTurn, max int) []models.ConversationTurn {
	if max <= 0 || len(turns) <= max {
		return turns
	}
	return turns[len(turns)-max:]
}

// Options shared by store implementations.
type Options struct {
	TTL      time.Duration
	MaxTurns int
}
