package session

import (
	"context"
	"sync"
	"time"

	"github.com/luxelabs/concierge/models"
)

type memoryEntry struct {
	turns     []models.ConversationTurn
	expiresAt time.Time
}

// MemoryStore is an in-process Store used in tests and single-node runs.
type MemoryStore struct {
	mu       sync.RWMutex
	opts     Options
	sessions map[string]memoryEntry
}

func NewMemoryStore(opts Options) *MemoryStore {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 12
	}
	return &MemoryStore{opts: opts, sessions: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) ([]models.ConversationTurn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.sessions[sessionID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	out := make([]models.ConversationTurn, len(entry.turns))
	copy(out, entry.turns)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, sessionID string, turns []models.ConversationTurn) error {
	trimmed := Trim(turns, m.opts.MaxTurns)
	stored := make([]models.ConversationTurn, len(trimmed))
	copy(stored, trimmed)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = memoryEntry{turns: stored, expiresAt: time.Now().Add(m.opts.TTL)}
	return nil
}
