package web

import (
	"net/http"

	"gitlab-portal/internal/middleware"
	"gitlab-portal/internal/session"

	"github.com/gin-gonic/gin"
)

type homeData struct {
	Mode          session.AuthMode `json:"mode"`
	Authenticated bool             `json:"authenticated"`
	Identity      string           `json:"identity,omitempty"`
}

// Home renders the landing page for the given auth mode.
func Home(mode session.AuthMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		data := homeData{Mode: mode}
		if h := middleware.SessionFrom(c); h != nil {
			data.Identity, data.Authenticated = h.Data().Identity(mode)
		}
		Render(c, "home", data)
	}
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
