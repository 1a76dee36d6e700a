package services

import (
	"context"
	"errors"
	"fmt"

	"go.pilab.hu/authbridge/domain"
)

// SessionRefresher exchanges a refresh token for a new session and re-attaches
// the stored account record, exactly as LoginOrchestrator does at login.
type SessionRefresher struct {
	provider domain.IdentityProvider
	profiles domain.ProfileStore
}

// NewSessionRefresher creates a new SessionRefresher.
func NewSessionRefresher(provider domain.IdentityProvider, profiles domain.ProfileStore) *SessionRefresher {
	return &SessionRefresher{provider: provider, profiles: profiles}
}

// Refresh validates the token locally, exchanges it at the provider and
// enriches the new session. A missing account after a successful refresh is
// reported as ErrInconsistentState so callers can tell "token invalid" apart
// from "profile missing".
func (r *SessionRefresher) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token is required", domain.ErrInvalidInput)
	}

	identityID, session, err := r.provider.RefreshSession(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	// Discard the provider-embedded user stub before enrichment.
	session.User = nil

	account, err := r.profiles.GetAccountByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: identity %s", domain.ErrInconsistentState, identityID)
		}
		return nil, err
	}

	session.User = account
	return session, nil
}
