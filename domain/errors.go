package domain

import "errors"

var (
	// ErrInvalidInput marks a missing or empty required field. It is raised
	// locally, before any remote call is made.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredentials is deliberately opaque: callers cannot tell an
	// unknown email apart from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrAlreadyExists       = errors.New("already exists")
	ErrNotFound            = errors.New("not found")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	ErrStoreUnavailable    = errors.New("profile store unavailable")

	// ErrInconsistentState means an authenticated identity has no matching
	// account record. The cross-system 1:1 invariant cannot be enforced by a
	// single transaction, so it is checked at read time and surfaced as this
	// error.
	ErrInconsistentState = errors.New("identity has no matching account")
)
