package middleware

import (
	"errors"

	"gitlab-portal/internal/session"
	"gitlab-portal/internal/snippets"

	"github.com/gin-gonic/gin"
)

var (
	// ErrNotFound hides protected pages from anonymous visitors.
	ErrNotFound = errors.New("not found")
	// ErrForbidden rejects authenticated users acting on another owner's resource.
	ErrForbidden = errors.New("forbidden")
)

const snippetKey = "snippet"

// CheckAuthenticated passes when the session is logged in under mode.
func CheckAuthenticated(s *session.Session, mode session.AuthMode) error {
	if s == nil || !s.Authenticated(mode) {
		return ErrNotFound
	}
	return nil
}

// CheckOwnership passes when identity is the resource owner.
func CheckOwnership(identity, owner string) error {
	if identity == "" || identity != owner {
		return ErrForbidden
	}
	return nil
}

// RequireAuthenticated aborts with ErrNotFound for anonymous sessions.
func RequireAuthenticated(mode session.AuthMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		var data *session.Session
		if h := SessionFrom(c); h != nil {
			data = h.Data()
		}

		if err := CheckAuthenticated(data, mode); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireOwnership loads the snippet named by :id and aborts unless the
// session identity owns it. A missing snippet aborts with
// snippets.ErrNotFound before ownership is compared. Must run after
// RequireAuthenticated.
func RequireOwnership(repo snippets.Repository, mode session.AuthMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		snippet, err := repo.FindByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		var identity string
		if h := SessionFrom(c); h != nil {
			identity, _ = h.Data().Identity(mode)
		}

		if err := CheckOwnership(identity, snippet.Owner); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(snippetKey, snippet)
		c.Next()
	}
}

// SnippetFrom returns the snippet loaded by RequireOwnership.
func SnippetFrom(c *gin.Context) *snippets.Snippet {
	v, ok := c.Get(snippetKey)
	if !ok {
		return nil
	}
	s, _ := v.(*snippets.Snippet)
	return s
}
