package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/authbridge/domain"
)

// SagaState tracks how far a signup attempt progressed. Failure paths are
// enumerable: a saga that ends in StateCompensationAttempted created an
// identity and then tried to delete it again after the account insert failed.
type SagaState string

const (
	StateStarted               SagaState = "STARTED"
	StateIdentityCreated       SagaState = "IDENTITY_CREATED"
	StateCompleted             SagaState = "COMPLETED"
	StateCompensationAttempted SagaState = "COMPENSATION_ATTEMPTED"
)

// RollbackAck is the acknowledgment string returned to callers when the
// compensating identity deletion was attempted.
const RollbackAck = "User deleted from Auth"

// SignupInput carries the caller-validated signup request. All fields are
// required; Role is validated by the caller layer.
type SignupInput struct {
	Username string
	Email    string
	Password string
	Role     domain.Role
}

// SignupError tags a signup failure with the step that failed. Rollback is
// non-empty only for account-step failures, where the compensating identity
// deletion was attempted.
type SignupError struct {
	Step     string
	Err      error
	Rollback string
}

func (e *SignupError) Error() string {
	if e.Rollback != "" {
		return fmt.Sprintf("signup failed at step %q: %v (%s)", e.Step, e.Err, e.Rollback)
	}
	return fmt.Sprintf("signup failed at step %q: %v", e.Step, e.Err)
}

func (e *SignupError) Unwrap() error { return e.Err }

// SignupSaga creates an identity at the provider and an account in the
// profile store as a two-step saga. If the second step fails it compensates
// by deleting the just-created identity, so that after any outcome either
// both records exist with matching ids or (best effort) neither does.
type SignupSaga struct {
	provider domain.IdentityProvider
	profiles domain.ProfileStore
}

// NewSignupSaga creates a new SignupSaga.
func NewSignupSaga(provider domain.IdentityProvider, profiles domain.ProfileStore) *SignupSaga {
	return &SignupSaga{provider: provider, profiles: profiles}
}

// Execute runs the saga. On success it returns the created account and
// StateCompleted; no session is issued, the caller must log in separately.
// The returned state is meaningful on failure too.
func (s *SignupSaga) Execute(ctx context.Context, in SignupInput) (*domain.Account, SagaState, error) {
	state := StateStarted

	if in.Username == "" || in.Email == "" || in.Password == "" || in.Role == "" {
		return nil, state, &SignupError{Step: "input", Err: domain.ErrInvalidInput}
	}

	identityID, err := s.provider.CreateIdentity(ctx, in.Email, in.Password)
	if err != nil {
		return nil, state, &SignupError{Step: "identity", Err: err}
	}
	state = StateIdentityCreated

	account, err := s.profiles.InsertAccount(ctx, &domain.Account{
		AccountID: identityID,
		Username:  in.Username,
		Email:     in.Email,
		Role:      in.Role,
	})
	if err != nil {
		state = StateCompensationAttempted
		// Best-effort compensation. Its own failure is not surfaced to the
		// caller; an orphaned identity is logged for operators to reconcile.
		if delErr := s.provider.DeleteIdentity(ctx, identityID); delErr != nil {
			log.Error().Err(delErr).
				Str("identity_id", identityID).
				Msg("signup compensation failed, orphaned identity left at provider")
		} else {
			log.Info().Str("identity_id", identityID).Msg("signup rolled back, identity deleted")
		}
		return nil, state, &SignupError{Step: "account", Err: err, Rollback: RollbackAck}
	}
	state = StateCompleted

	log.Info().Str("account_id", account.AccountID).Msg("account created")
	return account, state, nil
}
