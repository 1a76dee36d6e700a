package domain

import "time"

// Session is the access/refresh token pair issued by the identity provider.
// It is owned by the caller and never persisted here. User starts out as the
// provider's raw stub and is replaced with the stored Account by the
// orchestrators before the session is returned (enrichment).
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *Account  `json:"user,omitempty"`
}

// Credentials is the transient login input. It is never persisted and must
// never be logged.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
