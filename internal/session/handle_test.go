package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadHandle(t *testing.T, store Store, cookie *http.Cookie) (*Handle, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h, err := Load(context.Background(), store, rec, req, time.Hour, DefaultCookieOptions(false))
	require.NoError(t, err)
	return h, rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	resp := &http.Response{Header: rec.Header()}
	for _, c := range resp.Cookies() {
		if c.Name == InsecureCookieName {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func TestHandle_FreshSessionIsNotStoredUntilSave(t *testing.T) {
	store := NewMemoryStore()
	h, rec := loadHandle(t, store, nil)

	assert.NotEmpty(t, h.Data().ID)
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, rec.Header().Values("Set-Cookie"))

	h.Data().CSRFState = "s1"
	require.NoError(t, h.Save(context.Background()))
	assert.Equal(t, 1, store.Len())

	cookie := sessionCookie(t, rec)
	assert.Equal(t, h.Data().ID, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	again, _ := loadHandle(t, store, cookie)
	assert.Equal(t, "s1", again.Data().CSRFState)
	assert.Equal(t, h.Data().ID, again.Data().ID)
}

func TestHandle_UnknownCookieStartsFreshSession(t *testing.T) {
	store := NewMemoryStore()
	h, _ := loadHandle(t, store, &http.Cookie{Name: InsecureCookieName, Value: "forged"})
	assert.NotEqual(t, "forged", h.Data().ID)
}

func TestHandle_Regenerate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	h, rec := loadHandle(t, store, nil)
	h.Data().CSRFState = "state"
	require.NoError(t, h.Save(ctx))
	oldID := h.Data().ID

	h2, rec2 := loadHandle(t, store, sessionCookie(t, rec))
	require.NoError(t, h2.Regenerate(ctx))

	assert.NotEqual(t, oldID, h2.Data().ID)
	assert.Empty(t, h2.Data().CSRFState)

	old, err := store.Get(ctx, oldID)
	require.NoError(t, err)
	assert.Nil(t, old, "old session id must be invalidated")

	h2.Data().Username = "alice"
	require.NoError(t, h2.Save(ctx))
	assert.Equal(t, h2.Data().ID, sessionCookie(t, rec2).Value)
}

func TestHandle_Destroy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	h, rec := loadHandle(t, store, nil)
	require.NoError(t, h.Save(ctx))

	h2, rec2 := loadHandle(t, store, sessionCookie(t, rec))
	require.NoError(t, h2.Destroy(ctx))
	assert.Equal(t, 0, store.Len())

	cleared := sessionCookie(t, rec2)
	assert.Equal(t, -1, cleared.MaxAge)
}

func TestHandle_Flash(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	h, rec := loadHandle(t, store, nil)
	require.NoError(t, h.SetFlash(ctx, "success", "saved"))

	h2, _ := loadHandle(t, store, sessionCookie(t, rec))
	f, err := h2.PopFlash(ctx)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "saved", f.Text)

	f, err = h2.PopFlash(ctx)
	require.NoError(t, err)
	assert.Nil(t, f)
}

type failingStore struct {
	*MemoryStore
	deleteErr error
}

func (f failingStore) Delete(ctx context.Context, id string) error {
	return f.deleteErr
}

func TestHandle_RegenerateFailure(t *testing.T) {
	store := failingStore{MemoryStore: NewMemoryStore(), deleteErr: errors.New("redis down")}
	ctx := context.Background()

	h, rec := loadHandle(t, store, nil)
	require.NoError(t, h.Save(ctx))

	h2, _ := loadHandle(t, store, sessionCookie(t, rec))
	oldID := h2.Data().ID
	err := h2.Regenerate(ctx)
	require.Error(t, err)
	assert.Equal(t, oldID, h2.Data().ID)
}
