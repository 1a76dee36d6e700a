package services

import (
	"context"
	"errors"
	"fmt"

	"go.pilab.hu/authbridge/domain"
)

// LoginOrchestrator authenticates credentials at the identity provider and
// enriches the issued session with the stored account record.
type LoginOrchestrator struct {
	provider domain.IdentityProvider
	profiles domain.ProfileStore
}

// NewLoginOrchestrator creates a new LoginOrchestrator.
func NewLoginOrchestrator(provider domain.IdentityProvider, profiles domain.ProfileStore) *LoginOrchestrator {
	return &LoginOrchestrator{provider: provider, profiles: profiles}
}

// Login authenticates the credentials and returns the enriched session. The
// provider's raw user stub is replaced with the account fetched from the
// profile store. An authenticated identity without an account is an
// invariant violation and surfaces as ErrInconsistentState.
func (o *LoginOrchestrator) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}

	identityID, session, err := o.provider.Authenticate(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, err
	}

	account, err := o.profiles.GetAccountByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: identity %s", domain.ErrInconsistentState, identityID)
		}
		return nil, err
	}

	session.User = account
	return session, nil
}
