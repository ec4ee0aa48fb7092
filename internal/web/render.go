package web

import (
	"net/http"

	"gitlab-portal/internal/logger"
	"gitlab-portal/internal/middleware"
	"gitlab-portal/internal/session"

	"github.com/gin-gonic/gin"
)

const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Page is what every view receives. Presentation is left to the client.
type Page struct {
	View  string         `json:"view"`
	Data  any            `json:"data"`
	Flash *session.Flash `json:"flash"`
}

// Render writes the view payload and consumes the pending flash.
func Render(c *gin.Context, view string, data any) {
	var flash *session.Flash

	if h := middleware.SessionFrom(c); h != nil {
		f, err := h.PopFlash(c.Request.Context())
		if err != nil {
			logger.Warn("flash not cleared", map[string]any{
				"view":  view,
				"error": err.Error(),
			})
		}
		flash = f
	}

	c.JSON(http.StatusOK, Page{View: view, Data: data, Flash: flash})
}

// FlashRedirect stores a notice for the next page and redirects to location.
func FlashRedirect(c *gin.Context, kind, text, location string) {
	if h := middleware.SessionFrom(c); h != nil {
		if err := h.SetFlash(c.Request.Context(), kind, text); err != nil {
			logger.Warn("flash not stored", map[string]any{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
		}
	}
	c.Redirect(http.StatusFound, location)
}
