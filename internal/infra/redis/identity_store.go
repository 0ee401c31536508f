package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdentityStore persists one client's active conversation id under
// advisor:conversation:{clientID}. Every save refreshes the ttl.
type IdentityStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewIdentityStore(client *redis.Client, clientID string, ttl time.Duration) *IdentityStore {
	return &IdentityStore{client: client, key: identityKey(clientID), ttl: ttl}
}

func (s *IdentityStore) Load(ctx context.Context) (string, error) {
	id, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

func (s *IdentityStore) Save(ctx context.Context, conversationID string) error {
	return s.client.Set(ctx, s.key, conversationID, s.ttl).Err()
}

func (s *IdentityStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

func identityKey(clientID string) string {
	return "advisor:conversation:" + clientID
}
