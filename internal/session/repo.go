package session

import (
	"context"
	"time"

	"github.com/ykozlov/learning-assistant/internal/domain"
)

// ConversationRepository is the slice of the database repository the
// repo-backed store needs.
type ConversationRepository interface {
	GetConversation(ctx context.Context, sessionID string) (*domain.ConversationState, error)
	UpsertConversation(ctx context.Context, state *domain.ConversationState) error
	DeleteConversation(ctx context.Context, sessionID string) error
	CleanupExpiredConversations(ctx context.Context, ttl time.Duration) (int64, error)
}

// RepoStore persists conversation state through the database repository, so
// conversations survive process restarts.
type RepoStore struct {
	repo ConversationRepository
}

// NewRepoStore creates a repository-backed session store.
func NewRepoStore(repo ConversationRepository) *RepoStore {
	return &RepoStore{repo: repo}
}

// Get returns the stored state, or nil when absent.
func (r *RepoStore) Get(ctx context.Context, sessionID string) (*domain.ConversationState, error) {
	return r.repo.GetConversation(ctx, sessionID)
}

// Put stores the state under its session id.
func (r *RepoStore) Put(ctx context.Context, _ string, state *domain.ConversationState) error {
	return r.repo.UpsertConversation(ctx, state)
}

// Delete removes a session.
func (r *RepoStore) Delete(ctx context.Context, sessionID string) error {
	return r.repo.DeleteConversation(ctx, sessionID)
}

// CleanupExpired evicts conversations idle longer than ttl.
func (r *RepoStore) CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	return r.repo.CleanupExpiredConversations(ctx, ttl)
}

var _ Store = (*RepoStore)(nil)
