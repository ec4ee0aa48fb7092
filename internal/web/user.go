package web

import (
	"errors"

	"gitlab-portal/internal/auth/oauth"
	"gitlab-portal/internal/gitlab"
	"gitlab-portal/internal/logger"
	"gitlab-portal/internal/middleware"
	"gitlab-portal/internal/session"

	"github.com/gin-gonic/gin"
)

// UserHandler proxies the logged-in user's GitLab data.
type UserHandler struct {
	manager *oauth.Manager
	client  *gitlab.Client
}

func NewUserHandler(manager *oauth.Manager, client *gitlab.Client) *UserHandler {
	return &UserHandler{manager: manager, client: client}
}

func (h *UserHandler) RegisterRoutes(r gin.IRouter) {
	user := r.Group("/user", middleware.RequireAuthenticated(session.AuthModeOAuth))
	user.GET("/profile", h.profile)
	user.GET("/activities", h.activities)
	user.GET("/group-projects", h.groupProjects)
}

func (h *UserHandler) profile(c *gin.Context) {
	token, ok := h.accessToken(c)
	if !ok {
		return
	}

	user, err := h.client.CurrentUser(c.Request.Context(), token)
	if err != nil {
		h.fail(c, err)
		return
	}

	Render(c, "user/profile", user)
}

func (h *UserHandler) activities(c *gin.Context) {
	token, ok := h.accessToken(c)
	if !ok {
		return
	}

	events, err := h.client.FetchAllActivity(c.Request.Context(), token)
	if err != nil {
		h.fail(c, err)
		return
	}

	Render(c, "user/activities", gin.H{
		"count":  len(events),
		"events": events,
	})
}

func (h *UserHandler) groupProjects(c *gin.Context) {
	token, ok := h.accessToken(c)
	if !ok {
		return
	}

	groups, err := h.client.GroupProjects(c.Request.Context(), token)
	if err != nil {
		h.fail(c, err)
		return
	}

	Render(c, "user/group-projects", gin.H{"groups": groups})
}

func (h *UserHandler) accessToken(c *gin.Context) (string, bool) {
	token, err := h.manager.ValidAccessToken(c.Request.Context(), middleware.SessionFrom(c))
	if err != nil {
		h.fail(c, err)
		return "", false
	}
	return token, true
}

// fail reports auth and upstream failures as a flash on the home page.
// Anything else goes to the error presenter.
func (h *UserHandler) fail(c *gin.Context, err error) {
	var (
		authErr     *oauth.AuthError
		upstreamErr *gitlab.UpstreamError
		graphQLErr  *gitlab.GraphQLError
	)

	switch {
	case errors.As(err, &authErr):
		logger.Warn("gitlab token unavailable", map[string]any{
			"path": c.Request.URL.Path,
			"code": authErr.Code,
		})
		// a rejected refresh token cannot recover; drop the session
		if authErr.Code == oauth.ErrRefreshFailed {
			if err := middleware.SessionFrom(c).Destroy(c.Request.Context()); err != nil {
				logger.Warn("session not destroyed", map[string]any{
					"path":  c.Request.URL.Path,
					"error": err.Error(),
				})
			}
		}
		FlashRedirect(c, FlashError, "Your GitLab session could not be used, please log in again.", "/")
	case errors.As(err, &upstreamErr):
		logger.Warn("gitlab request failed", map[string]any{
			"path":   c.Request.URL.Path,
			"status": upstreamErr.Status,
		})
		FlashRedirect(c, FlashError, upstreamErr.Error(), "/")
	case errors.As(err, &graphQLErr):
		FlashRedirect(c, FlashError, graphQLErr.Error(), "/")
	default:
		_ = c.Error(err)
	}
}
