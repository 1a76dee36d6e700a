package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/authbridge/cache"
	"go.pilab.hu/authbridge/domain"
)

// IdentityResolver answers the "who am I" query: it resolves a bearer token
// to the account record behind it.
type IdentityResolver struct {
	provider domain.IdentityProvider
	profiles domain.ProfileStore
	verified cache.VerificationStore
}

// NewIdentityResolver creates a new IdentityResolver. The verification store
// may be nil, in which case every token is verified at the provider.
func NewIdentityResolver(provider domain.IdentityProvider, profiles domain.ProfileStore, verified cache.VerificationStore) *IdentityResolver {
	return &IdentityResolver{provider: provider, profiles: profiles, verified: verified}
}

// Resolve verifies the token and returns the matching account. A missing
// token fails locally, before any remote call. Verified tokens are cached so
// repeated lookups for the same token skip the provider round trip.
func (r *IdentityResolver) Resolve(ctx context.Context, token string) (*domain.Account, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: bearer token is required", domain.ErrInvalidInput)
	}

	identityID, cached := r.cachedIdentity(ctx, token)
	if !cached {
		var err error
		identityID, err = r.provider.VerifyToken(ctx, token)
		if err != nil {
			return nil, err
		}
		if r.verified != nil {
			// Cache writes are advisory only.
			if err := r.verified.Set(ctx, token, identityID); err != nil {
				log.Debug().Err(err).Msg("failed to cache verified token")
			}
		}
	}

	account, err := r.profiles.GetAccountByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: identity %s", domain.ErrInconsistentState, identityID)
		}
		return nil, err
	}
	return account, nil
}

func (r *IdentityResolver) cachedIdentity(ctx context.Context, token string) (string, bool) {
	if r.verified == nil {
		return "", false
	}
	return r.verified.Get(ctx, token)
}
