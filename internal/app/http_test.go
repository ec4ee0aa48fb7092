package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"gitlab-portal/internal/auth/credentials"
	"gitlab-portal/internal/auth/oauth"
	gitlabprovider "gitlab-portal/internal/auth/provider/gitlab"
	"gitlab-portal/internal/auth/resolver"
	"gitlab-portal/internal/config"
	"gitlab-portal/internal/db"
	"gitlab-portal/internal/gitlab"
	"gitlab-portal/internal/middleware"
	"gitlab-portal/internal/session"
	"gitlab-portal/internal/snippets"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()
	gdb, err := db.Open(ctx, config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

func baseDeps(t *testing.T, mode session.AuthMode, gdb *gorm.DB) routerDeps {
	return routerDeps{
		mode: mode,
		sessions: middleware.NewSessionMiddleware(
			session.NewMemoryStore(),
			time.Hour,
			session.DefaultCookieOptions(false),
		),
		snippets: snippets.NewGormRepository(gdb),
	}
}

type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func newBrowser(t *testing.T, base string) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: base,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type page struct {
	View  string          `json:"view"`
	Data  json.RawMessage `json:"data"`
	Flash *session.Flash  `json:"flash"`
}

func (b *browser) get(path string) (*http.Response, page) {
	b.t.Helper()
	resp, err := b.client.Get(b.base + path)
	require.NoError(b.t, err)
	defer resp.Body.Close()

	var p page
	if resp.StatusCode == http.StatusOK {
		require.NoError(b.t, json.NewDecoder(resp.Body).Decode(&p))
	}
	return resp, p
}

func (b *browser) post(path string, form url.Values) *http.Response {
	b.t.Helper()
	resp, err := b.client.PostForm(b.base+path, form)
	require.NoError(b.t, err)
	resp.Body.Close()
	return resp
}

func TestRouter_LocalModeSnippetLifecycle(t *testing.T) {
	gdb := openTestDB(t)
	deps := baseDeps(t, session.AuthModeLocal, gdb)
	deps.credentials = credentials.NewService(gdb)

	srv := httptest.NewServer(buildRouter(deps))
	defer srv.Close()

	anon := newBrowser(t, srv.URL)
	resp, _ := anon.get("/snippets/create")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = anon.get("/user/profile")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "gitlab pages are not mounted in local mode")

	alice := newBrowser(t, srv.URL)
	resp = alice.post("/account/register", url.Values{"username": {"alice"}, "password": {"0123456789"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, home := alice.get("/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "home", home.View)
	require.NotNil(t, home.Flash)
	assert.Equal(t, "success", home.Flash.Type)
	assert.JSONEq(t, `{"mode":"local","authenticated":true,"identity":"alice"}`, string(home.Data))

	_, home = alice.get("/")
	assert.Nil(t, home.Flash, "flash is shown once")

	resp = alice.post("/snippets/create", url.Values{"title": {"T"}, "content": {"C"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/snippets", resp.Header.Get("Location"))

	_, list := alice.get("/snippets")
	var listData struct {
		Snippets []snippets.Snippet `json:"snippets"`
	}
	require.NoError(t, json.Unmarshal(list.Data, &listData))
	require.Len(t, listData.Snippets, 1)
	id := listData.Snippets[0].ID
	assert.Equal(t, "alice", listData.Snippets[0].Owner)

	bob := newBrowser(t, srv.URL)
	bob.post("/account/register", url.Values{"username": {"bob"}, "password": {"0123456789"}})
	resp = bob.post("/snippets/"+id+"/update", url.Values{"title": {"X"}, "content": {"X"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = bob.post("/snippets/"+id+"/delete", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = alice.post("/snippets/"+id+"/update", url.Values{"title": {"  "}, "content": {"C2"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/snippets/"+id+"/update", resp.Header.Get("Location"))
	_, form := alice.get("/snippets/" + id + "/update")
	require.NotNil(t, form.Flash)
	assert.Equal(t, "error", form.Flash.Type)

	resp = alice.post("/snippets/"+id+"/update", url.Values{"title": {"T2"}, "content": {"C2"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp, show := alice.get("/snippets/" + id + "/show")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var showData struct {
		Snippet snippets.Snippet `json:"snippet"`
		CanEdit bool             `json:"canEdit"`
	}
	require.NoError(t, json.Unmarshal(show.Data, &showData))
	assert.Equal(t, "T2", showData.Snippet.Title)
	assert.True(t, showData.CanEdit)

	resp = alice.post("/snippets/"+id+"/delete", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp, _ = alice.get("/snippets/" + id + "/show")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = alice.post("/account/logout", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	resp, _ = alice.get("/snippets/create")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_LocalLoginRejectsBadPassword(t *testing.T) {
	gdb := openTestDB(t)
	deps := baseDeps(t, session.AuthModeLocal, gdb)
	deps.credentials = credentials.NewService(gdb)

	_, err := deps.credentials.Register(context.Background(), "carol", "0123456789")
	require.NoError(t, err)

	srv := httptest.NewServer(buildRouter(deps))
	defer srv.Close()

	b := newBrowser(t, srv.URL)
	resp := b.post("/account/login", url.Values{"username": {"carol"}, "password": {"nope-nope-nope"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/account/login", resp.Header.Get("Location"))

	_, loginPage := b.get("/account/login")
	require.NotNil(t, loginPage.Flash)
	assert.Equal(t, "Invalid username or password.", loginPage.Flash.Text)

	resp = b.post("/account/login", url.Values{"username": {"carol"}, "password": {"0123456789"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, _ = b.get("/snippets/create")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// fakeGitLab issues tokens that live for expiresIn seconds and rejects
// every grant other than the "good-code" exchange.
func fakeGitLab(t *testing.T, expiresIn int) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "gl-access",
			"refresh_token": "gl-refresh",
			"token_type":    "Bearer",
			"expires_in":    expiresIn,
			"created_at":    time.Now().Unix(),
		})
	})
	mux.HandleFunc("/api/v4/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gl-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(gitlab.User{ID: 42, Username: "alice", Name: "Alice"})
	})
	mux.HandleFunc("/api/v4/events", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	return httptest.NewServer(mux)
}

func oauthServer(t *testing.T, gl *httptest.Server) *httptest.Server {
	t.Helper()
	gdb := openTestDB(t)
	deps := baseDeps(t, session.AuthModeOAuth, gdb)
	deps.gitlab = gitlab.New(gl.URL, gitlab.WithHTTPClient(gl.Client()))

	provider, err := gitlabprovider.New(context.Background(), gitlabprovider.Config{
		BaseURL:      gl.URL,
		ClientID:     "app-id",
		ClientSecret: "app-secret",
		RedirectURL:  "http://portal.test/auth/gitlab",
		Scopes:       []string{"read_user", "read_api"},
	}, deps.gitlab, gl.Client())
	require.NoError(t, err)
	deps.manager = oauth.NewManager(provider, resolver.NewDBResolver(gdb))

	return httptest.NewServer(buildRouter(deps))
}

// beginLogin starts the flow and returns the state GitLab would echo back.
func (b *browser) beginLogin(gitlabURL string) string {
	b.t.Helper()
	resp, _ := b.get("/auth/login")
	require.Equal(b.t, http.StatusFound, resp.StatusCode)
	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(b.t, err)
	assert.True(b.t, strings.HasPrefix(location.String(), gitlabURL+"/oauth/authorize"))
	state := location.Query().Get("state")
	require.NotEmpty(b.t, state)
	return state
}

func TestRouter_OAuthLogin(t *testing.T) {
	gl := fakeGitLab(t, 7200)
	defer gl.Close()

	srv := oauthServer(t, gl)
	defer srv.Close()

	b := newBrowser(t, srv.URL)

	resp, _ := b.get("/user/profile")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	state := b.beginLogin(gl.URL)

	// forged state never reaches the token endpoint
	resp, _ = b.get("/auth/gitlab?code=good-code&state=forged")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	resp, _ = b.get("/user/profile")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = b.get("/auth/gitlab?code=good-code&state=" + url.QueryEscape(state))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, profile := b.get("/user/profile")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "user/profile", profile.View)
	var user gitlab.User
	require.NoError(t, json.Unmarshal(profile.Data, &user))
	assert.Equal(t, "alice", user.Username)

	// upstream failure becomes a flash on the home page
	resp, _ = b.get("/user/activities")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	_, home := b.get("/")
	require.NotNil(t, home.Flash)
	assert.Contains(t, home.Flash.Text, "502")

	resp = b.post("/snippets/create", url.Values{"title": {"T"}, "content": {"C"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp = b.post("/auth/logout", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp, _ = b.get("/user/profile")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_OAuthRejectedRefreshEndsSession(t *testing.T) {
	// tokens are already inside the expiry margin when issued
	gl := fakeGitLab(t, 1)
	defer gl.Close()

	srv := oauthServer(t, gl)
	defer srv.Close()

	b := newBrowser(t, srv.URL)
	state := b.beginLogin(gl.URL)

	resp, _ := b.get("/auth/gitlab?code=good-code&state=" + url.QueryEscape(state))
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp, _ = b.get("/user/profile")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	_, home := b.get("/")
	require.NotNil(t, home.Flash)
	assert.Equal(t, "error", home.Flash.Type)
	assert.JSONEq(t, `{"mode":"oauth","authenticated":false}`, string(home.Data))

	resp, _ = b.get("/user/profile")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_Health(t *testing.T) {
	deps := baseDeps(t, session.AuthModeLocal, openTestDB(t))
	deps.credentials = credentials.NewService(nil)

	rec := httptest.NewRecorder()
	buildRouter(deps).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
