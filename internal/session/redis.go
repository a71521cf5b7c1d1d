package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ykozlov/learning-assistant/internal/domain"
)

const sessionKeyPrefix = "intake:session:"

// RedisStore keeps conversation state in Redis as JSON values with a native
// TTL, for deployments running more than one intake instance.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store. The ttl is applied on
// every Put, so active sessions keep sliding forward.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

// Get returns the stored state, nil when absent, or ErrCorrupt when the
// stored value cannot be decoded.
func (r *RedisStore) Get(ctx context.Context, sessionID string) (*domain.ConversationState, error) {
	data, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	var state domain.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &state, nil
}

// Put stores the state with the configured TTL.
func (r *RedisStore) Put(ctx context.Context, sessionID string, state *domain.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sessionID, err)
	}
	if err := r.client.Set(ctx, sessionKey(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("put session %s: %w", sessionID, err)
	}
	return nil
}

// Delete removes a session.
func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// CleanupExpired is a no-op: Redis expires session keys natively.
func (r *RedisStore) CleanupExpired(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

var _ Store = (*RedisStore)(nil)
