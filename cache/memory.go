package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore implements VerificationStore using ttlcache.
type MemoryStore struct {
	cache *ttlcache.Cache[string, string]
}

// NewMemoryStore creates an in-memory verification store whose entries
// expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	c := ttlcache.New(
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go c.Start()

	return &MemoryStore{cache: c}
}

// Set implements VerificationStore.Set.
func (s *MemoryStore) Set(_ context.Context, token, identityID string) error {
	s.cache.Set(HashToken(token), identityID, ttlcache.DefaultTTL)
	return nil
}

// Get implements VerificationStore.Get.
func (s *MemoryStore) Get(_ context.Context, token string) (string, bool) {
	item := s.cache.Get(HashToken(token))
	if item == nil {
		return "", false
	}
	return item.Value(), true
}

// Delete implements VerificationStore.Delete.
func (s *MemoryStore) Delete(_ context.Context, token string) {
	s.cache.Delete(HashToken(token))
}

// Stop terminates the background expiration loop.
func (s *MemoryStore) Stop() {
	s.cache.Stop()
}
