package session

import (
	"context"
	"time"
)

// AuthMode selects which authentication scheme a deployment runs.
type AuthMode string

const (
	AuthModeOAuth AuthMode = "oauth"
	AuthModeLocal AuthMode = "local"
)

// TokenExpiryMargin treats a token as expired slightly before the provider does.
const TokenExpiryMargin = 5 * time.Second

// TokenRecord is the OAuth token set issued by the provider.
// It is replaced wholesale on refresh, never merged.
type TokenRecord struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	CreatedAt    int64  `json:"created_at"` // epoch seconds
	ExpiresIn    int64  `json:"expires_in"` // seconds, <= 0 means no expiry
}

// ExpiresAt returns the instant the provider stops accepting the token.
func (t *TokenRecord) ExpiresAt() time.Time {
	return time.Unix(t.CreatedAt+t.ExpiresIn, 0)
}

// Expired reports whether the token should be refreshed at now.
func (t *TokenRecord) Expired(now time.Time) bool {
	if t.ExpiresIn <= 0 {
		return false
	}
	return !now.Before(t.ExpiresAt().Add(-TokenExpiryMargin))
}

// Flash is a one-shot notice shown on the next rendered page.
type Flash struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Session is the server-side state behind the session cookie.
type Session struct {
	ID           string       `json:"id"`
	CSRFState    string       `json:"csrf_state,omitempty"`
	CodeVerifier string       `json:"code_verifier,omitempty"`
	AuthData     *TokenRecord `json:"auth_data,omitempty"`
	Subject      string       `json:"subject,omitempty"`  // owner identity for OAuth logins
	Username     string       `json:"username,omitempty"` // local-auth identity
	Flash        *Flash       `json:"flash,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// Authenticated reports whether the marker for mode is present.
func (s *Session) Authenticated(mode AuthMode) bool {
	_, ok := s.Identity(mode)
	return ok
}

// Identity returns the identity string used for resource ownership.
func (s *Session) Identity(mode AuthMode) (string, bool) {
	if s == nil {
		return "", false
	}
	switch mode {
	case AuthModeOAuth:
		if s.AuthData == nil {
			return "", false
		}
		return s.Subject, true
	case AuthModeLocal:
		if s.Username == "" {
			return "", false
		}
		return s.Username, true
	}
	return "", false
}

// Store defines how sessions are stored and retrieved.
// Get returns (nil, nil) for unknown or expired sessions.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error
}
