package app

import (
	"context"
	"strings"

	"gitlab-portal/internal/auth/credentials"
	"gitlab-portal/internal/auth/handler"
	"gitlab-portal/internal/auth/oauth"
	gitlabprovider "gitlab-portal/internal/auth/provider/gitlab"
	"gitlab-portal/internal/auth/resolver"
	"gitlab-portal/internal/config"
	"gitlab-portal/internal/gitlab"
	"gitlab-portal/internal/logger"
	"gitlab-portal/internal/middleware"
	"gitlab-portal/internal/session"
	"gitlab-portal/internal/snippets"
	"gitlab-portal/internal/web"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-cleanhttp"
)

// routerDeps is everything the router needs. The oauth fields are set in
// oauth mode and credentials in local mode.
type routerDeps struct {
	mode        session.AuthMode
	sessions    *middleware.SessionMiddleware
	snippets    snippets.Repository
	manager     *oauth.Manager
	gitlab      *gitlab.Client
	credentials *credentials.Service
}

func setupHTTP(ctx context.Context, cfg *config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() error {
		return infra.Close(context.Background())
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	deps := routerDeps{
		mode: session.AuthMode(cfg.Auth.Mode),
	}

	var sessionStore session.Store
	if infra.Redis != nil {
		sessionStore = session.NewRedisStore(infra.Redis.Client)
	} else {
		sessionStore = session.NewMemoryStore()
		logger.Warn("using in-memory session store; sessions are lost on restart", nil)
	}
	deps.sessions = middleware.NewSessionMiddleware(
		sessionStore,
		cfg.Session.TTL,
		session.DefaultCookieOptions(cfg.Session.CookieSecure),
	)

	if infra.Mongo != nil {
		repo := snippets.NewMongoRepository(infra.Mongo.Database(cfg.Snippets.MongoDatabase))
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = cleanup()
			return nil, nil, err
		}
		deps.snippets = repo
	} else {
		deps.snippets = snippets.NewGormRepository(infra.DB)
	}

	switch deps.mode {
	case session.AuthModeOAuth:
		httpClient := cleanhttp.DefaultPooledClient()
		httpClient.Timeout = cfg.GitLab.Timeout

		deps.gitlab = gitlab.New(cfg.GitLab.BaseURL, gitlab.WithHTTPClient(httpClient))

		provider, err := gitlabprovider.New(
			ctx,
			gitlabprovider.Config{
				BaseURL:      cfg.GitLab.BaseURL,
				ClientID:     cfg.GitLab.ClientID,
				ClientSecret: cfg.GitLab.ClientSecret,
				RedirectURL:  cfg.GitLab.RedirectURL,
				Scopes:       strings.Fields(cfg.GitLab.Scope),
				OIDC:         cfg.GitLab.OIDC,
			},
			deps.gitlab,
			httpClient,
		)
		if err != nil {
			_ = cleanup()
			return nil, nil, err
		}

		deps.manager = oauth.NewManager(provider, resolver.NewDBResolver(infra.DB))

	case session.AuthModeLocal:
		deps.credentials = credentials.NewService(infra.DB)
	}

	switch cfg.Server.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(cfg.Server.Mode)
	}

	return buildRouter(deps), cleanup, nil
}

func buildRouter(deps routerDeps) *gin.Engine {

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.ErrorPresenter())
	router.Use(middleware.GinLoadSession(deps.sessions))

	router.NoRoute(middleware.NotFound)

	// ----------------------------
	// Public Routes
	// ----------------------------

	router.GET("/", web.Home(deps.mode))
	router.GET("/health", web.Health)

	handler.NewHandler(deps.manager, deps.credentials).RegisterRoutes(router, deps.mode)

	// ----------------------------
	// GitLab Routes
	// ----------------------------

	if deps.mode == session.AuthModeOAuth {
		web.NewUserHandler(deps.manager, deps.gitlab).RegisterRoutes(router)
	}

	// ----------------------------
	// Snippet Routes
	// ----------------------------

	web.NewSnippetHandler(deps.snippets, deps.mode).RegisterRoutes(router)

	for _, route := range router.Routes() {
		logger.Debug("route registered", map[string]any{
			"method": route.Method,
			"path":   route.Path,
		})
	}

	return router
}
