package provider

import (
	"context"

	"gitlab-portal/internal/auth"

	"golang.org/x/oauth2"
)

// OAuthProvider defines the contract the OAuth flow needs from an
// authorization server. Implementations talk to the provider only and
// must not touch sessions.
type OAuthProvider interface {
	// Name returns the provider identifier (e.g. "gitlab").
	Name() string

	// AuthCodeURL returns the authorization URL for state. The PKCE
	// challenge is derived from verifier.
	AuthCodeURL(state string, verifier string) string

	// ExchangeCode trades an authorization code for a token set.
	ExchangeCode(ctx context.Context, code string, verifier string) (*oauth2.Token, error)

	// RefreshToken trades a refresh token for a new token set.
	RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)

	// Identity returns who the token belongs to.
	Identity(ctx context.Context, token *oauth2.Token) (*auth.Identity, error)
}
