package handler

import (
	"net/http"

	"gitlab-portal/internal/auth/credentials"
	"gitlab-portal/internal/auth/oauth"
	"gitlab-portal/internal/logger"
	"gitlab-portal/internal/middleware"
	"gitlab-portal/internal/session"
	"gitlab-portal/internal/web"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	manager           *oauth.Manager
	credentialService *credentials.Service
}

// NewHandler builds the login handlers. Only the dependency for the
// active auth mode needs to be set.
func NewHandler(
	manager *oauth.Manager,
	credentialService *credentials.Service,
) *Handler {
	return &Handler{
		manager:           manager,
		credentialService: credentialService,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter, mode session.AuthMode) {
	switch mode {
	case session.AuthModeOAuth:
		r.GET("/auth/login", h.login)
		r.GET("/auth/gitlab", h.callback)
		r.POST("/auth/logout", middleware.RequireAuthenticated(mode), h.Logout)
	case session.AuthModeLocal:
		r.GET("/account/login", h.LoginForm)
		r.POST("/account/login", h.Login)
		r.GET("/account/register", h.RegisterForm)
		r.POST("/account/register", h.Register)
		r.POST("/account/logout", middleware.RequireAuthenticated(mode), h.LocalLogout)
	}
}

func (h *Handler) login(c *gin.Context) {
	authURL, err := h.manager.BeginLogin(c.Request.Context(), middleware.SessionFrom(c))
	if err != nil {
		logger.Error("oauth login could not start", map[string]any{
			"error": err.Error(),
		})
		web.FlashRedirect(c, web.FlashError, "Login is currently unavailable.", "/")
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

func (h *Handler) callback(c *gin.Context) {
	errParam := c.Query("error")
	errDesc := c.Query("error_description")

	// CASE 1: user denied access or GitLab rejected the request
	if errParam != "" {
		logger.Warn("oauth callback returned error", map[string]any{
			"error": errParam,
			"desc":  errDesc,
		})
		web.FlashRedirect(c, web.FlashError, "Login was cancelled.", "/")
		return
	}

	// CASE 2: Normal OAuth callback
	_, err := h.manager.CompleteLogin(
		c.Request.Context(),
		middleware.SessionFrom(c),
		c.Query("code"),
		c.Query("state"),
	)
	if err != nil {
		logger.Warn("oauth login failed", map[string]any{
			"error": err.Error(),
			"ip":    c.ClientIP(),
		})
		web.FlashRedirect(c, web.FlashError, "Login failed, please try again.", "/")
		return
	}

	web.FlashRedirect(c, web.FlashSuccess, "You are now logged in.", "/")
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.manager.Logout(c.Request.Context(), middleware.SessionFrom(c)); err != nil {
		logger.Error("oauth logout failed", map[string]any{
			"error": err.Error(),
		})
		web.FlashRedirect(c, web.FlashError, "Logout failed, please try again.", "/")
		return
	}

	web.FlashRedirect(c, web.FlashSuccess, "You have been logged out.", "/")
}
