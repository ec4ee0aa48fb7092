package handler

import (
	"gitlab-portal/internal/logger"
	"gitlab-portal/internal/middleware"
	"gitlab-portal/internal/web"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func (h *Handler) LoginForm(c *gin.Context) {
	web.Render(c, "account/login", nil)
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		web.FlashRedirect(c, web.FlashError, "Invalid request.", "/account/login")
		return
	}

	username, err := h.credentialService.Authenticate(
		c.Request.Context(),
		req.Username,
		req.Password,
	)
	if err != nil {
		web.FlashRedirect(c, web.FlashError, "Invalid username or password.", "/account/login")
		return
	}

	if err := h.startLocalSession(c, username); err != nil {
		_ = c.Error(err)
		return
	}

	logger.Info("local login", map[string]any{
		"username": username,
		"ip":       c.ClientIP(),
	})
	web.FlashRedirect(c, web.FlashSuccess, "You are now logged in.", "/")
}

func (h *Handler) LocalLogout(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	username := sess.Data().Username
	sess.Data().Username = ""

	if err := sess.Regenerate(c.Request.Context()); err != nil {
		logger.Error("local logout failed", map[string]any{
			"username": username,
			"error":    err.Error(),
		})
		web.FlashRedirect(c, web.FlashError, "Logout failed, please try again.", "/")
		return
	}

	web.FlashRedirect(c, web.FlashSuccess, "You have been logged out.", "/")
}

// startLocalSession binds username to a new session id.
func (h *Handler) startLocalSession(c *gin.Context, username string) error {
	sess := middleware.SessionFrom(c)
	if err := sess.Regenerate(c.Request.Context()); err != nil {
		return err
	}
	sess.Data().Username = username
	return sess.Save(c.Request.Context())
}
