package idp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go.pilab.hu/authbridge/domain"
)

type memoryIdentity struct {
	id           string
	email        string
	passwordHash []byte
}

type memoryToken struct {
	identityID string
	expiresAt  time.Time
}

// MemoryProvider is an in-process domain.IdentityProvider for development
// and tests. Passwords are stored as bcrypt hashes; tokens are opaque random
// values with a fixed TTL.
type MemoryProvider struct {
	mu         sync.RWMutex
	byEmail    map[string]*memoryIdentity
	byID       map[string]*memoryIdentity
	access     map[string]memoryToken
	refresh    map[string]string // refresh token -> identity id
	sessionTTL time.Duration
	cost       int
}

// NewMemoryProvider creates a new MemoryProvider issuing sessions that
// expire after sessionTTL.
func NewMemoryProvider(sessionTTL time.Duration) *MemoryProvider {
	return &MemoryProvider{
		byEmail:    make(map[string]*memoryIdentity),
		byID:       make(map[string]*memoryIdentity),
		access:     make(map[string]memoryToken),
		refresh:    make(map[string]string),
		sessionTTL: sessionTTL,
		cost:       bcrypt.DefaultCost,
	}
}

// CreateIdentity implements domain.IdentityProvider.
func (p *MemoryProvider) CreateIdentity(_ context.Context, email, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("%w: bcrypt hash generation failed: %v", domain.ErrProviderUnavailable, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byEmail[email]; ok {
		return "", fmt.Errorf("%w: email already registered", domain.ErrAlreadyExists)
	}

	identity := &memoryIdentity{
		id:           uuid.NewString(),
		email:        email,
		passwordHash: hash,
	}
	p.byEmail[email] = identity
	p.byID[identity.id] = identity
	return identity.id, nil
}

// DeleteIdentity implements domain.IdentityProvider.
func (p *MemoryProvider) DeleteIdentity(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	identity, ok := p.byID[id]
	if !ok {
		return fmt.Errorf("%w: identity %s", domain.ErrNotFound, id)
	}
	delete(p.byID, id)
	delete(p.byEmail, identity.email)
	return nil
}

// Authenticate implements domain.IdentityProvider.
func (p *MemoryProvider) Authenticate(_ context.Context, email, password string) (string, *domain.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	identity, ok := p.byEmail[email]
	if !ok {
		// Same error whether the email is unknown or the password is wrong.
		return "", nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(identity.passwordHash, []byte(password)); err != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	return identity.id, p.issueSessionLocked(identity), nil
}

// VerifyToken implements domain.IdentityProvider. Expired entries are
// evicted on lookup so the access map does not grow unbounded.
func (p *MemoryProvider) VerifyToken(_ context.Context, token string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.access[token]
	if !ok {
		return "", fmt.Errorf("%w: token invalid or expired", domain.ErrInvalidCredentials)
	}
	if time.Now().After(entry.expiresAt) {
		delete(p.access, token)
		return "", fmt.Errorf("%w: token invalid or expired", domain.ErrInvalidCredentials)
	}
	return entry.identityID, nil
}

// RefreshSession implements domain.IdentityProvider. The presented refresh
// token is rotated: it is consumed and a new pair is issued.
func (p *MemoryProvider) RefreshSession(_ context.Context, refreshToken string) (string, *domain.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	identityID, ok := p.refresh[refreshToken]
	if !ok {
		return "", nil, fmt.Errorf("%w: unknown refresh token", domain.ErrInvalidCredentials)
	}
	identity, ok := p.byID[identityID]
	if !ok {
		return "", nil, fmt.Errorf("%w: identity %s", domain.ErrNotFound, identityID)
	}

	delete(p.refresh, refreshToken)
	return identity.id, p.issueSessionLocked(identity), nil
}

func (p *MemoryProvider) issueSessionLocked(identity *memoryIdentity) *domain.Session {
	accessToken := uuid.NewString()
	refreshToken := uuid.NewString()
	expiresAt := time.Now().Add(p.sessionTTL)

	p.access[accessToken] = memoryToken{identityID: identity.id, expiresAt: expiresAt}
	p.refresh[refreshToken] = identity.id

	return &domain.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         &domain.Account{AccountID: identity.id, Email: identity.email},
	}
}

var _ domain.IdentityProvider = (*MemoryProvider)(nil)
