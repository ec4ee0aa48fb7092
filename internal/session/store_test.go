package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRecord_Expired(t *testing.T) {
	rec := &TokenRecord{AccessToken: "a", CreatedAt: 1000, ExpiresIn: 10}

	assert.False(t, rec.Expired(time.Unix(1004, 0)))
	assert.True(t, rec.Expired(time.Unix(1005, 0)))
	assert.True(t, rec.Expired(time.Unix(2000, 0)))
}

func TestTokenRecord_NoExpiry(t *testing.T) {
	rec := &TokenRecord{AccessToken: "a", CreatedAt: 1000}
	assert.False(t, rec.Expired(time.Unix(1<<40, 0)))
}

func TestSession_Identity(t *testing.T) {
	tests := []struct {
		name     string
		sess     *Session
		mode     AuthMode
		wantID   string
		wantAuth bool
	}{
		{"nil session", nil, AuthModeOAuth, "", false},
		{"anonymous oauth", &Session{}, AuthModeOAuth, "", false},
		{"oauth login", &Session{AuthData: &TokenRecord{AccessToken: "a"}, Subject: "alice"}, AuthModeOAuth, "alice", true},
		{"local marker ignored in oauth mode", &Session{Username: "bob"}, AuthModeOAuth, "", false},
		{"local login", &Session{Username: "bob"}, AuthModeLocal, "bob", true},
		{"oauth marker ignored in local mode", &Session{AuthData: &TokenRecord{}, Subject: "alice"}, AuthModeLocal, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := tt.sess.Identity(tt.mode)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantAuth, ok)
			assert.Equal(t, tt.wantAuth, tt.sess.Authenticated(tt.mode))
		})
	}
}

func testStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	s := Session{
		ID:        "sid-1",
		CSRFState: "state",
		AuthData:  &TokenRecord{AccessToken: "at", RefreshToken: "rt", CreatedAt: 1, ExpiresIn: 7200},
		Subject:   "alice",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	require.NoError(t, store.Create(ctx, s))

	got, err := store.Get(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "state", got.CSRFState)
	require.NotNil(t, got.AuthData)
	assert.Equal(t, "rt", got.AuthData.RefreshToken)
	assert.Equal(t, "alice", got.Subject)

	s.Flash = &Flash{Type: "success", Text: "saved"}
	require.NoError(t, store.Update(ctx, s))
	got, err = store.Get(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, got.Flash)
	assert.Equal(t, "saved", got.Flash.Text)

	require.NoError(t, store.Delete(ctx, "sid-1"))
	got, err = store.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	missing, err := store.Get(ctx, "never-stored")
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = store.Create(ctx, Session{ID: "old", ExpiresAt: time.Now().Add(-time.Minute)})
	assert.Error(t, err)

	err = store.Create(ctx, Session{ExpiresAt: time.Now().Add(time.Minute)})
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_ExpiresOnGet(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Create(context.Background(), Session{ID: "s", ExpiresAt: now.Add(time.Minute)}))

	now = now.Add(2 * time.Minute)
	got, err := store.Get(context.Background(), "s")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, store.Len())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	testStoreContract(t, NewRedisStore(client))
}

func TestRedisStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client)
	require.NoError(t, store.Create(context.Background(), Session{ID: "s", ExpiresAt: time.Now().Add(time.Minute)}))

	ttl := mr.TTL("session:s")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	mr.FastForward(2 * time.Minute)
	got, err := store.Get(context.Background(), "s")
	require.NoError(t, err)
	assert.Nil(t, got)
}
