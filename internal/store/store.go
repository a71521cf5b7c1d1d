// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ykozlov/learning-assistant/internal/domain"
)

// Repository defines the interface for persisting intake data.
type Repository interface {
	// SaveStudentRecord upserts a completed intake record keyed by session
	// id, overwriting any prior record for that id.
	SaveStudentRecord(ctx context.Context, rec *domain.StudentRecord) error

	// GetStudentRecord retrieves a persisted record, or nil when absent.
	GetStudentRecord(ctx context.Context, sessionID string) (*domain.StudentRecord, error)

	// GetConversation retrieves stored conversation state, or nil when absent
	// or unreadable.
	GetConversation(ctx context.Context, sessionID string) (*domain.ConversationState, error)

	// UpsertConversation creates or updates conversation state.
	UpsertConversation(ctx context.Context, state *domain.ConversationState) error

	// DeleteConversation removes conversation state.
	DeleteConversation(ctx context.Context, sessionID string) error

	// CleanupExpiredConversations removes conversations idle longer than ttl.
	CleanupExpiredConversations(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
