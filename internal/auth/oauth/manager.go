package oauth

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"gitlab-portal/internal/auth/provider"
	"gitlab-portal/internal/auth/resolver"
	"gitlab-portal/internal/logger"
	"gitlab-portal/internal/session"
	"gitlab-portal/internal/utils"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	stateBytes = 32

	// refreshTimeout bounds a shared refresh, which outlives the request
	// that started it.
	refreshTimeout = 30 * time.Second
)

// Session is the request-scoped session contract the flow needs.
// *session.Handle satisfies it.
type Session interface {
	Data() *session.Session
	Save(ctx context.Context) error
	Regenerate(ctx context.Context) error
}

// Manager drives the authorization code flow and keeps the session's
// token record valid.
type Manager struct {
	provider provider.OAuthProvider
	resolver resolver.Resolver
	now      func() time.Time

	// refreshes collapses concurrent refreshes of one refresh token
	// within this process.
	refreshes singleflight.Group
}

func NewManager(p provider.OAuthProvider, r resolver.Resolver) *Manager {
	return &Manager{
		provider: p,
		resolver: r,
		now:      time.Now,
	}
}

// BeginLogin makes sure the session carries a state token and PKCE
// verifier and returns the provider authorization URL.
func (m *Manager) BeginLogin(ctx context.Context, s Session) (string, error) {
	data := s.Data()

	if data.CSRFState == "" {
		state, err := utils.RandomString(stateBytes)
		if err != nil {
			return "", newError(ErrSessionError, "failed to generate state", err)
		}
		data.CSRFState = state
		data.CodeVerifier = oauth2.GenerateVerifier()

		if err := s.Save(ctx); err != nil {
			return "", newError(ErrSessionError, "failed to persist login state", err)
		}
	}

	return m.provider.AuthCodeURL(data.CSRFState, data.CodeVerifier), nil
}

// CompleteLogin validates the callback state, exchanges the code and
// binds the resulting token record to a freshly regenerated session.
func (m *Manager) CompleteLogin(
	ctx context.Context,
	s Session,
	code string,
	state string,
) (*session.TokenRecord, error) {

	data := s.Data()
	if data.CSRFState == "" || state != data.CSRFState {
		return nil, newError(ErrStateMismatch, "state does not match login attempt", nil)
	}

	token, err := m.provider.ExchangeCode(ctx, code, data.CodeVerifier)
	if err != nil {
		return nil, newError(ErrExchangeFailed, "authorization code exchange failed", err)
	}

	identity, err := m.provider.Identity(ctx, token)
	if err != nil {
		return nil, newError(ErrExchangeFailed, "failed to identify user", err)
	}

	owner, err := m.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, newError(ErrSessionError, "failed to resolve user", err)
	}

	record := newTokenRecord(token, m.now())

	if err := s.Regenerate(ctx); err != nil {
		return nil, newError(ErrSessionError, "failed to regenerate session", err)
	}

	data = s.Data()
	data.AuthData = record
	data.Subject = owner

	if err := s.Save(ctx); err != nil {
		return nil, newError(ErrSessionError, "failed to persist session", err)
	}

	logger.Info("oauth login completed", map[string]any{
		"provider": m.provider.Name(),
		"owner":    owner,
	})

	return record, nil
}

// ValidAccessToken returns an access token that is not about to expire,
// refreshing and persisting a new token record when needed.
func (m *Manager) ValidAccessToken(ctx context.Context, s Session) (string, error) {
	data := s.Data()
	if data.AuthData == nil {
		return "", newError(ErrNotAuthenticated, "session has no token", nil)
	}

	if !data.AuthData.Expired(m.now()) {
		return data.AuthData.AccessToken, nil
	}

	refreshToken := data.AuthData.RefreshToken
	v, err, shared := m.refreshes.Do(refreshToken, func() (any, error) {
		// other callers wait on this call, so the first caller's
		// cancellation must not fail it for them
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		token, err := m.provider.RefreshToken(refreshCtx, refreshToken)
		if err != nil {
			return nil, err
		}
		return newTokenRecord(token, m.now()), nil
	})
	if err != nil {
		return "", newError(ErrRefreshFailed, "token refresh failed", err)
	}

	record := *v.(*session.TokenRecord)
	data.AuthData = &record

	if err := s.Save(ctx); err != nil {
		return "", newError(ErrSessionError, "failed to persist refreshed token", err)
	}

	logger.Debug("oauth token refreshed", map[string]any{
		"subject": data.Subject,
		"shared":  shared,
	})

	return record.AccessToken, nil
}

// Logout drops the token record and identity and regenerates the session.
func (m *Manager) Logout(ctx context.Context, s Session) error {
	data := s.Data()
	data.AuthData = nil
	data.Subject = ""

	if err := s.Regenerate(ctx); err != nil {
		return newError(ErrSessionError, "failed to regenerate session", err)
	}
	return nil
}

// newTokenRecord prefers GitLab's created_at/expires_in fields and falls
// back to the parsed expiry when the response omits them.
func newTokenRecord(token *oauth2.Token, now time.Time) *session.TokenRecord {
	record := &session.TokenRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		CreatedAt:    now.Unix(),
	}

	if createdAt, ok := extraInt(token, "created_at"); ok {
		record.CreatedAt = createdAt
	}

	if expiresIn, ok := extraInt(token, "expires_in"); ok {
		record.ExpiresIn = expiresIn
	} else if !token.Expiry.IsZero() {
		record.ExpiresIn = max(int64(token.Expiry.Sub(now).Seconds()), 1)
	}

	return record
}

func extraInt(token *oauth2.Token, key string) (int64, bool) {
	switch v := token.Extra(key).(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
