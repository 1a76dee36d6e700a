package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// VerificationStore caches the identity id a bearer token was verified for,
// so repeated resolutions of the same token avoid a provider round trip.
// Entries expire on the store's TTL; a miss simply means the token must be
// verified remotely again.
type VerificationStore interface {
	Set(ctx context.Context, token, identityID string) error
	Get(ctx context.Context, token string) (string, bool)
	Delete(ctx context.Context, token string)
}

// HashToken hashes a token before it is used as a cache key. Raw token
// values never reach the cache backend.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
