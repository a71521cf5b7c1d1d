package session

import (
	"context"
	"sync"
	"time"

	"github.com/ykozlov/learning-assistant/internal/domain"
)

// MemoryStore is an in-process Store guarded by a RWMutex. Pair it with the
// sweeper so idle sessions do not accumulate for the process lifetime.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.ConversationState
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.ConversationState),
	}
}

// Get returns a copy of the stored state, or nil when absent.
func (m *MemoryStore) Get(_ context.Context, sessionID string) (*domain.ConversationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

// Put stores a copy of the state under the session id.
func (m *MemoryStore) Put(_ context.Context, sessionID string, state *domain.ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sessionID] = state.Clone()
	return nil
}

// Delete removes a session.
func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

// CleanupExpired evicts sessions whose last update is older than ttl.
func (m *MemoryStore) CleanupExpired(_ context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	var evicted int64
	for id, state := range m.sessions {
		if state.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted, nil
}

// Len reports the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

var _ Store = (*MemoryStore)(nil)
