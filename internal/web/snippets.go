package web

import (
	"errors"

	"gitlab-portal/internal/logger"
	"gitlab-portal/internal/middleware"
	"gitlab-portal/internal/session"
	"gitlab-portal/internal/snippets"

	"github.com/gin-gonic/gin"
)

type snippetForm struct {
	Title   string `form:"title"`
	Content string `form:"content"`
}

// SnippetHandler serves the snippet pages.
type SnippetHandler struct {
	repo snippets.Repository
	mode session.AuthMode
}

func NewSnippetHandler(repo snippets.Repository, mode session.AuthMode) *SnippetHandler {
	return &SnippetHandler{repo: repo, mode: mode}
}

func (h *SnippetHandler) RegisterRoutes(r gin.IRouter) {
	authenticated := middleware.RequireAuthenticated(h.mode)
	owner := middleware.RequireOwnership(h.repo, h.mode)

	g := r.Group("/snippets")

	g.GET("", h.list)
	g.GET("/create", authenticated, h.createForm)
	g.POST("/create", authenticated, h.create)
	g.GET("/:id/show", h.show)
	g.GET("/:id/update", authenticated, owner, h.updateForm)
	g.POST("/:id/update", authenticated, owner, h.update)
	g.GET("/:id/delete", authenticated, owner, h.deleteForm)
	g.POST("/:id/delete", authenticated, owner, h.delete)
}

func (h *SnippetHandler) list(c *gin.Context) {
	list, err := h.repo.ListAll(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	Render(c, "snippets/index", gin.H{
		"snippets": list,
		"identity": h.identity(c),
	})
}

func (h *SnippetHandler) show(c *gin.Context) {
	s, err := h.repo.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	Render(c, "snippets/show", gin.H{
		"snippet":  s,
		"canEdit":  middleware.CheckOwnership(h.identity(c), s.Owner) == nil,
		"identity": h.identity(c),
	})
}

func (h *SnippetHandler) createForm(c *gin.Context) {
	Render(c, "snippets/create", nil)
}

func (h *SnippetHandler) create(c *gin.Context) {
	var form snippetForm
	if err := c.ShouldBind(&form); err != nil {
		FlashRedirect(c, FlashError, "Invalid form submission.", "/snippets/create")
		return
	}

	s, err := h.repo.Create(c.Request.Context(), form.Title, form.Content, h.identity(c))
	if err != nil {
		h.fail(c, err, "/snippets/create")
		return
	}

	logger.Info("snippet created", map[string]any{
		"id":    s.ID,
		"owner": s.Owner,
	})
	FlashRedirect(c, FlashSuccess, "Snippet created.", "/snippets")
}

func (h *SnippetHandler) updateForm(c *gin.Context) {
	Render(c, "snippets/update", gin.H{"snippet": middleware.SnippetFrom(c)})
}

func (h *SnippetHandler) update(c *gin.Context) {
	current := middleware.SnippetFrom(c)
	formPath := "/snippets/" + current.ID + "/update"

	var form snippetForm
	if err := c.ShouldBind(&form); err != nil {
		FlashRedirect(c, FlashError, "Invalid form submission.", formPath)
		return
	}

	if _, err := h.repo.Update(c.Request.Context(), current.ID, form.Title, form.Content); err != nil {
		h.fail(c, err, formPath)
		return
	}

	FlashRedirect(c, FlashSuccess, "Snippet updated.", "/snippets")
}

func (h *SnippetHandler) deleteForm(c *gin.Context) {
	Render(c, "snippets/delete", gin.H{"snippet": middleware.SnippetFrom(c)})
}

func (h *SnippetHandler) delete(c *gin.Context) {
	current := middleware.SnippetFrom(c)

	if err := h.repo.Delete(c.Request.Context(), current.ID); err != nil {
		h.fail(c, err, "/snippets")
		return
	}

	logger.Info("snippet deleted", map[string]any{
		"id":    current.ID,
		"owner": current.Owner,
	})
	FlashRedirect(c, FlashSuccess, "Snippet deleted.", "/snippets")
}

func (h *SnippetHandler) identity(c *gin.Context) string {
	if s := middleware.SessionFrom(c); s != nil {
		id, _ := s.Data().Identity(h.mode)
		return id
	}
	return ""
}

// fail turns validation problems into a flash on the form. Missing
// snippets and store failures go to the error presenter.
func (h *SnippetHandler) fail(c *gin.Context, err error, formPath string) {
	var vErr *snippets.ValidationError
	if errors.As(err, &vErr) {
		FlashRedirect(c, FlashError, vErr.Error(), formPath)
		return
	}
	_ = c.Error(err)
}
