package middleware

import (
	"errors"
	"net/http"

	"gitlab-portal/internal/logger"
	"gitlab-portal/internal/snippets"

	"github.com/gin-gonic/gin"
)

// ErrorPresenter turns the last error recorded on the context into a
// status response when the handler chain did not write one.
func ErrorPresenter() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := StatusFor(err)

		if status == http.StatusInternalServerError {
			logger.Error("request failed", map[string]any{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
				"error":  err.Error(),
			})
		}

		c.JSON(status, gin.H{"error": http.StatusText(status)})
	}
}

// StatusFor maps an error to the HTTP status the presenter responds with.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, snippets.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// NotFound is the handler for unknown routes.
func NotFound(c *gin.Context) {
	_ = c.Error(ErrNotFound)
}
