package middleware

import (
	"net/http"

	"gitlab-portal/internal/session"

	"github.com/gin-gonic/gin"
)

// GinLoadSession adapts the net/http SessionMiddleware to Gin.
func GinLoadSession(m *SessionMiddleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Bridge handler to allow net/http middleware execution
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
			c.Next()
		})

		// Wrap Gin request with net/http session middleware
		handler := m.LoadSession(next)

		// Execute middleware chain
		handler.ServeHTTP(c.Writer, c.Request)

		// If the session middleware already handled the response, stop Gin chain
		if c.Writer.Written() {
			c.Abort()
			return
		}
	}
}

// SessionFrom returns the request's session handle, or nil when the
// session middleware did not run.
func SessionFrom(c *gin.Context) *session.Handle {
	h, _ := SessionFromContext(c.Request.Context())
	return h
}
