// Package session stores per-conversation state between turns.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ykozlov/learning-assistant/internal/domain"
)

// ErrCorrupt marks stored session state that could not be decoded. Callers
// reset to a fresh default state instead of failing the turn.
var ErrCorrupt = errors.New("corrupt session state")

// Store holds conversation state between turns, keyed by session id, with
// last-write-wins semantics per key.
type Store interface {
	// Get returns the state for a session id, or nil when absent.
	Get(ctx context.Context, sessionID string) (*domain.ConversationState, error)

	// Put stores the state under the session id.
	Put(ctx context.Context, sessionID string, state *domain.ConversationState) error

	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error

	// CleanupExpired evicts sessions idle longer than ttl and reports how
	// many were removed. Backends with native expiry may report zero.
	CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error)
}

// GetOrCreate returns the stored state for a session, or a fresh default
// state when the session is absent or its stored form is unreadable.
func GetOrCreate(ctx context.Context, s Store, sessionID string) (*domain.ConversationState, error) {
	state, err := s.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			slog.Warn("resetting corrupt session state", "session_id", sessionID, "error", err)
			return domain.NewConversationState(sessionID), nil
		}
		return nil, err
	}
	if state == nil {
		return domain.NewConversationState(sessionID), nil
	}
	return state, nil
}
