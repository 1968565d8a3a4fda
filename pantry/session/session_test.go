package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store := NewMemoryStore(time.Hour)
	t.Cleanup(func() { store.Close() })
	return NewManager(store, Config{CookieName: "visit"})
}

func TestMiddleware_FlashSurvivesRedirect(t *testing.T) {
	m := newTestManager(t)

	set := Middleware(m, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Flash(FromContext(r.Context()), "login_error", "domain not allowed")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}))
	rec := httptest.NewRecorder()
	set.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google/callback", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "visit", cookies[0].Name)

	var first, second string
	read := Middleware(m, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := FromContext(r.Context())
		if first == "" {
			first = PopFlash(s, "login_error")
		} else {
			second = PopFlash(s, "login_error")
		}
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.AddCookie(cookies[0])
		read.ServeHTTP(httptest.NewRecorder(), req)
	}
	require.Equal(t, "domain not allowed", first)
	require.Empty(t, second, "flash must be consumed on first read")
}

func TestMiddleware_UnmodifiedSessionSetsNoCookie(t *testing.T) {
	m := newTestManager(t)
	h := Middleware(m, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotNil(t, FromContext(r.Context()))
		w.Write([]byte("ok"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Empty(t, rec.Result().Cookies())
}

func TestManager_UnknownCookieStartsFresh(t *testing.T) {
	m := newTestManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "visit", Value: "nope"})

	s, err := m.Get(req)
	require.NoError(t, err)
	require.True(t, s.IsNew())
	require.NotEqual(t, "nope", s.ID())
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	ctx := t.Context()

	require.NoError(t, store.Save(ctx, &SessionData{ID: "old", ExpiresAt: time.Now().Add(-time.Second)}))
	_, err := store.Load(ctx, "old")
	require.ErrorIs(t, err, ErrExpired)

	store.removeExpired()
	require.Equal(t, 0, store.Size())

	_, err = store.Load(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
