package middleware

import (
	"context"
	"net/http"
	"time"

	"gitlab-portal/internal/logger"
	"gitlab-portal/internal/session"
)

// unexported, collision-proof context key
type sessionContextKeyType struct{}

var sessionKey = sessionContextKeyType{}

// SessionFromContext returns the session handle attached by LoadSession.
func SessionFromContext(ctx context.Context) (*session.Handle, bool) {
	h, ok := ctx.Value(sessionKey).(*session.Handle)
	return h, ok && h != nil
}

type SessionMiddleware struct {
	Store  session.Store
	TTL    time.Duration
	Cookie session.CookieOptions
}

func NewSessionMiddleware(store session.Store, ttl time.Duration, cookie session.CookieOptions) *SessionMiddleware {
	return &SessionMiddleware{Store: store, TTL: ttl, Cookie: cookie}
}

// LoadSession resolves the session cookie into a request-scoped handle.
// Anonymous requests get a fresh, unsaved session.
func (m *SessionMiddleware) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Load or start session
		h, err := session.Load(r.Context(), m.Store, w, r, m.TTL, m.Cookie)
		if err != nil {
			logger.Error("session load failed", map[string]any{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}

		// 2. Attach handle to context
		ctx := context.WithValue(r.Context(), sessionKey, h)

		// 3. Continue request
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
