package domain

import "context"

// IdentityProvider is the contract to the external identity provider, which
// owns credentials and issues sessions. Implementations do parameter
// marshaling and error normalization only; every failure is one of
// ErrInvalidCredentials, ErrAlreadyExists, ErrNotFound or
// ErrProviderUnavailable.
type IdentityProvider interface {
	// CreateIdentity registers a new credential-bearing identity and returns
	// its provider-assigned id.
	CreateIdentity(ctx context.Context, email, password string) (string, error)

	// DeleteIdentity removes an identity. Used as the signup saga's
	// compensating action.
	DeleteIdentity(ctx context.Context, id string) error

	// Authenticate verifies credentials and returns the identity id together
	// with a freshly issued session.
	Authenticate(ctx context.Context, email, password string) (string, *Session, error)

	// VerifyToken resolves an access token to the identity id it was issued
	// for.
	VerifyToken(ctx context.Context, token string) (string, error)

	// RefreshSession exchanges a refresh token for a new session.
	RefreshSession(ctx context.Context, refreshToken string) (string, *Session, error)
}

// ProfileStore is the contract to the application profile store. InsertAccount
// fails with ErrAlreadyExists or ErrStoreUnavailable; GetAccountByID fails
// with ErrNotFound or ErrStoreUnavailable.
type ProfileStore interface {
	InsertAccount(ctx context.Context, account *Account) (*Account, error)
	GetAccountByID(ctx context.Context, id string) (*Account, error)
}
