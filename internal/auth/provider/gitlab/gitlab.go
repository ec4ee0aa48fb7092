package gitlab

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"gitlab-portal/internal/auth"
	api "gitlab-portal/internal/gitlab"
	"gitlab-portal/internal/logger"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const providerName = "gitlab"

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// OIDC resolves endpoints through discovery and takes the identity
	// from a verified ID token instead of the REST user endpoint.
	OIDC bool
}

// Provider implements the authorization code flow against a GitLab instance.
type Provider struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	api         *api.Client
	httpClient  *http.Client

	// refreshClient adds redirect_uri to refresh grants, which GitLab
	// expects alongside the refresh token.
	refreshClient *http.Client
}

func New(
	ctx context.Context,
	cfg Config,
	apiClient *api.Client,
	httpClient *http.Client,
) (*Provider, error) {

	if cfg.BaseURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, errors.New("gitlab oauth config missing required fields")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	base := strings.TrimSuffix(cfg.BaseURL, "/")
	endpoint := oauth2.Endpoint{
		AuthURL:  base + "/oauth/authorize",
		TokenURL: base + "/oauth/token",
		// client_id and client_secret travel in the POST body
		AuthStyle: oauth2.AuthStyleInParams,
	}

	scopes := cfg.Scopes
	var verifier *oidc.IDTokenVerifier

	if cfg.OIDC {
		oidcProvider, err := oidc.NewProvider(oidc.ClientContext(ctx, httpClient), base)
		if err != nil {
			return nil, fmt.Errorf("failed to init gitlab oidc provider: %w", err)
		}

		ep := oidcProvider.Endpoint()
		endpoint.AuthURL = ep.AuthURL
		endpoint.TokenURL = ep.TokenURL

		verifier = oidcProvider.Verifier(&oidc.Config{
			ClientID: cfg.ClientID,
		})

		if !slices.Contains(scopes, oidc.ScopeOpenID) {
			scopes = append(slices.Clone(scopes), oidc.ScopeOpenID)
		}
	}

	return &Provider{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		verifier:      verifier,
		api:           apiClient,
		httpClient:    httpClient,
		refreshClient: withRedirectURI(httpClient, cfg.RedirectURL),
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return providerName
}

// AuthCodeURL builds the authorization URL with an S256 PKCE challenge.
func (p *Provider) AuthCodeURL(state string, verifier string) string {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return p.oauthConfig.AuthCodeURL(state, opts...)
}

func (p *Provider) ExchangeCode(
	ctx context.Context,
	code string,
	verifier string,
) (*oauth2.Token, error) {

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := p.oauthConfig.Exchange(p.clientContext(ctx), code, opts...)
	if err != nil {
		return nil, fmt.Errorf("gitlab token exchange failed: %w", err)
	}
	return token, nil
}

func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, errors.New("gitlab token refresh: no refresh token")
	}

	refreshCtx := context.WithValue(ctx, oauth2.HTTPClient, p.refreshClient)
	src := p.oauthConfig.TokenSource(refreshCtx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("gitlab token refresh failed: %w", err)
	}
	return token, nil
}

// Identity returns the GitLab user behind token, from the verified ID
// token when OIDC is enabled and one was issued, else from GET /user.
func (p *Provider) Identity(ctx context.Context, token *oauth2.Token) (*auth.Identity, error) {
	if p.verifier != nil {
		if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
			return p.identityFromIDToken(ctx, rawIDToken)
		}
	}

	user, err := p.api.CurrentUser(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("gitlab user lookup failed: %w", err)
	}
	if user.Username == "" {
		return nil, errors.New("gitlab user lookup returned no username")
	}

	return &auth.Identity{
		Provider:       providerName,
		ProviderUserID: strconv.FormatInt(user.ID, 10),
		Username:       user.Username,
		Email:          user.Email,
	}, nil
}

func (p *Provider) identityFromIDToken(ctx context.Context, rawIDToken string) (*auth.Identity, error) {
	idToken, err := p.verifier.Verify(p.clientContext(ctx), rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("gitlab id_token verification failed: %w", err)
	}

	var claims struct {
		Subject           string `json:"sub"`
		Nickname          string `json:"nickname"`
		PreferredUsername string `json:"preferred_username"`
		Email             string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("gitlab id_token claims parse failed: %w", err)
	}

	username := claims.PreferredUsername
	if username == "" {
		username = claims.Nickname
	}
	if claims.Subject == "" || username == "" {
		return nil, errors.New("gitlab id_token missing required claims")
	}

	logger.Debug("gitlab oidc verified", map[string]any{
		"issuer":      idToken.Issuer,
		"expiry_unix": idToken.Expiry.Unix(),
	})

	return &auth.Identity{
		Provider:       providerName,
		ProviderUserID: claims.Subject,
		Username:       username,
		Email:          claims.Email,
	}, nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func withRedirectURI(client *http.Client, redirectURI string) *http.Client {
	next := client.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	c := *client
	c.Transport = &redirectURITransport{next: next, redirectURI: redirectURI}
	return &c
}

type redirectURITransport struct {
	next        http.RoundTripper
	redirectURI string
}

func (t *redirectURITransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPost || req.Body == nil {
		return t.next.RoundTrip(req)
	}

	body, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}

	form, err := url.ParseQuery(string(body))
	if err == nil && form.Get("grant_type") == "refresh_token" && form.Get("redirect_uri") == "" {
		form.Set("redirect_uri", t.redirectURI)
		body = []byte(form.Encode())
	}

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.ContentLength = int64(len(body))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return t.next.RoundTrip(out)
}
