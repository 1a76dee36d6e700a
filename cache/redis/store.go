package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go.pilab.hu/authbridge/cache"
)

// Store implements cache.VerificationStore using Redis.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore creates a new [Store] instance. prefix namespaces the keys so the
// same Redis instance can serve multiple deployments.
func NewStore(client *redis.Client, prefix string, ttl time.Duration) *Store {
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) redisKey(token string) string {
	return fmt.Sprintf("%s:verified:%s", s.prefix, cache.HashToken(token))
}

// Set stores the identity id for a verified token with the store TTL.
func (s *Store) Set(ctx context.Context, token, identityID string) error {
	if err := s.client.Set(ctx, s.redisKey(token), identityID, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache verified token in Redis: %w", err)
	}
	return nil
}

// Get retrieves the identity id for a token, if still cached.
func (s *Store) Get(ctx context.Context, token string) (string, bool) {
	id, err := s.client.Get(ctx, s.redisKey(token)).Result()
	if err != nil {
		return "", false
	}
	return id, true
}

// Delete drops a cached verification.
func (s *Store) Delete(ctx context.Context, token string) {
	s.client.Del(ctx, s.redisKey(token))
}

var _ cache.VerificationStore = (*Store)(nil)
