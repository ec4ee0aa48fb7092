package session

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Handle binds one session to the request that is handling it.
// It is the get/set/regenerate/destroy contract the auth code works against.
// A Handle is not safe for concurrent use; each request owns its own.
type Handle struct {
	store     Store
	w         http.ResponseWriter
	opts      CookieOptions
	ttl       time.Duration
	now       func() time.Time
	sess      *Session
	persisted bool
}

// Load resolves the session referenced by the request cookie. Unknown or
// missing cookies yield a fresh session that is only stored on first Save.
func Load(
	ctx context.Context,
	store Store,
	w http.ResponseWriter,
	r *http.Request,
	ttl time.Duration,
	opts CookieOptions,
) (*Handle, error) {
	h := &Handle{
		store: store,
		w:     w,
		opts:  opts.normalize(),
		ttl:   ttl,
		now:   time.Now,
	}

	if cookie, err := r.Cookie(h.opts.Name); err == nil && cookie.Value != "" {
		sess, err := store.Get(ctx, cookie.Value)
		if err != nil {
			return nil, fmt.Errorf("session: load: %w", err)
		}
		if sess != nil {
			h.sess = sess
			h.persisted = true
			return h, nil
		}
	}

	if err := h.reset(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handle) reset() error {
	id, err := GenerateID()
	if err != nil {
		return err
	}
	now := h.now()
	h.sess = &Session{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(h.ttl),
	}
	h.persisted = false
	return nil
}

// Data returns the mutable session state. Changes are kept only after Save.
func (h *Handle) Data() *Session {
	return h.sess
}

// Save writes the session to the store, issuing the cookie on first write.
func (h *Handle) Save(ctx context.Context) error {
	if h.persisted {
		return h.store.Update(ctx, *h.sess)
	}
	if err := h.store.Create(ctx, *h.sess); err != nil {
		return err
	}
	h.persisted = true
	SetCookie(h.w, h.sess.ID, h.sess.ExpiresAt, h.opts)
	return nil
}

// Regenerate invalidates the current session id and starts an empty session
// under a new id. The new session is stored on the next Save.
func (h *Handle) Regenerate(ctx context.Context) error {
	if h.persisted {
		if err := h.store.Delete(ctx, h.sess.ID); err != nil {
			return fmt.Errorf("session: regenerate: %w", err)
		}
	}
	return h.reset()
}

// Destroy deletes the session and clears the cookie.
func (h *Handle) Destroy(ctx context.Context) error {
	if h.persisted {
		if err := h.store.Delete(ctx, h.sess.ID); err != nil {
			return fmt.Errorf("session: destroy: %w", err)
		}
	}
	ClearCookie(h.w, h.opts)
	return h.reset()
}

// SetFlash stores a notice for the next rendered page.
func (h *Handle) SetFlash(ctx context.Context, kind, text string) error {
	h.sess.Flash = &Flash{Type: kind, Text: text}
	return h.Save(ctx)
}

// PopFlash returns and clears the pending notice.
func (h *Handle) PopFlash(ctx context.Context) (*Flash, error) {
	f := h.sess.Flash
	if f == nil {
		return nil, nil
	}
	h.sess.Flash = nil
	return f, h.Save(ctx)
}
