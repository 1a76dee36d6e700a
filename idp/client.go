// Package idp contains identity provider gateways. The orchestration layer
// only depends on domain.IdentityProvider; this package supplies an HTTP
// client for a GoTrue-compatible auth API and an in-process provider for
// development and tests.
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/authbridge/domain"
)

// Client talks to a GoTrue-compatible identity provider over HTTP. Admin
// calls (create/delete identity) authenticate with the service-role key;
// token verification authenticates with the token under inspection.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewClient creates a new Client. baseURL is the provider's auth endpoint
// root, e.g. "https://auth.example.com/auth/v1".
func NewClient(baseURL, serviceKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type providerUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type providerSession struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	User         *providerUser `json:"user"`
}

type providerError struct {
	Message          string `json:"msg"`
	ErrorDescription string `json:"error_description"`
}

func (e *providerError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorDescription
}

// CreateIdentity implements domain.IdentityProvider.
func (c *Client) CreateIdentity(ctx context.Context, email, password string) (string, error) {
	body := map[string]any{
		"email":         email,
		"password":      password,
		"email_confirm": true,
	}

	var user providerUser
	if err := c.do(ctx, http.MethodPost, "/admin/users", c.serviceKey, body, &user); err != nil {
		return "", err
	}
	if user.ID == "" {
		return "", fmt.Errorf("%w: provider returned no identity id", domain.ErrProviderUnavailable)
	}
	return user.ID, nil
}

// DeleteIdentity implements domain.IdentityProvider.
func (c *Client) DeleteIdentity(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/admin/users/"+id, c.serviceKey, nil, nil)
}

// Authenticate implements domain.IdentityProvider.
func (c *Client) Authenticate(ctx context.Context, email, password string) (string, *domain.Session, error) {
	body := map[string]any{"email": email, "password": password}

	var raw providerSession
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", c.serviceKey, body, &raw); err != nil {
		return "", nil, err
	}
	return sessionFromProvider(&raw)
}

// VerifyToken implements domain.IdentityProvider.
func (c *Client) VerifyToken(ctx context.Context, token string) (string, error) {
	var user providerUser
	if err := c.do(ctx, http.MethodGet, "/user", token, nil, &user); err != nil {
		return "", err
	}
	if user.ID == "" {
		return "", fmt.Errorf("%w: provider returned no identity id", domain.ErrProviderUnavailable)
	}
	return user.ID, nil
}

// RefreshSession implements domain.IdentityProvider.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (string, *domain.Session, error) {
	body := map[string]any{"refresh_token": refreshToken}

	var raw providerSession
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", c.serviceKey, body, &raw); err != nil {
		return "", nil, err
	}
	return sessionFromProvider(&raw)
}

func sessionFromProvider(raw *providerSession) (string, *domain.Session, error) {
	if raw.User == nil || raw.User.ID == "" {
		return "", nil, fmt.Errorf("%w: provider session has no user", domain.ErrProviderUnavailable)
	}

	expiresAt := time.Unix(raw.ExpiresAt, 0)
	if raw.ExpiresAt == 0 {
		expiresAt = time.Now().Add(time.Duration(raw.ExpiresIn) * time.Second)
	}

	session := &domain.Session{
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
		ExpiresAt:    expiresAt,
		// The provider's user stub carries only id and email; orchestrators
		// replace it with the stored account before returning the session.
		User: &domain.Account{AccountID: raw.User.ID, Email: raw.User.Email},
	}
	return raw.User.ID, session, nil
}

// do performs a single provider call and normalizes the outcome onto the
// domain error set.
func (c *Client) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal provider request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("apikey", c.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.normalizeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode provider response: %v", domain.ErrProviderUnavailable, err)
	}
	return nil
}

func (c *Client) normalizeError(resp *http.Response) error {
	var perr providerError
	if data, err := io.ReadAll(resp.Body); err == nil {
		if err := json.Unmarshal(data, &perr); err != nil {
			log.Debug().Int("status", resp.StatusCode).Msg("provider returned non-JSON error body")
		}
	}

	msg := perr.text()
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		if msg == "" {
			msg = "invalid email or password"
		}
		return fmt.Errorf("%w: %s", domain.ErrInvalidCredentials, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrProviderUnavailable, resp.StatusCode, msg)
	}
}

var _ domain.IdentityProvider = (*Client)(nil)
