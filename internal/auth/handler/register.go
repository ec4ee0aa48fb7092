package handler

import (
	"errors"

	"gitlab-portal/internal/auth/credentials"
	"gitlab-portal/internal/web"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func (h *Handler) RegisterForm(c *gin.Context) {
	web.Render(c, "account/register", nil)
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		web.FlashRedirect(c, web.FlashError, "Invalid request.", "/account/register")
		return
	}

	username, err := h.credentialService.Register(
		c.Request.Context(),
		req.Username,
		req.Password,
	)
	if err != nil {
		switch {
		case errors.Is(err, credentials.ErrAlreadyRegistered):
			web.FlashRedirect(c, web.FlashError, "That username is already taken.", "/account/register")
		case errors.Is(err, credentials.ErrInvalidUsername), errors.Is(err, credentials.ErrPasswordTooShort):
			web.FlashRedirect(c, web.FlashError, err.Error(), "/account/register")
		default:
			_ = c.Error(err)
		}
		return
	}

	if err := h.startLocalSession(c, username); err != nil {
		_ = c.Error(err)
		return
	}

	web.FlashRedirect(c, web.FlashSuccess, "Your account has been created.", "/")
}
