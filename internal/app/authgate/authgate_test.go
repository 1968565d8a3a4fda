package authgate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/whiskers/internal/app/features/login"
	"github.com/dalemusser/whiskers/metrics"
	"github.com/dalemusser/whiskers/pantry/auth/oauth2"
	"github.com/dalemusser/whiskers/pantry/email"
	"github.com/dalemusser/whiskers/pantry/session"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []email.Message
}

func (m *recordingMailer) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type failingStore struct{ oauth2.SessionStore }

func (failingStore) Save(context.Context, *oauth2.Session) error { return errors.New("redis down") }

func attempts(provider, outcome string) float64 {
	return testutil.ToFloat64(metrics.AuthAttempts.WithLabelValues(provider, outcome))
}

func TestSubmitEmail_IssuesSession(t *testing.T) {
	store := oauth2.NewMemorySessionStore()
	mail := &recordingMailer{}
	g := New(Config{}, store, mail, nil)
	before := attempts(ProviderEmail, metrics.OutcomeSuccess)

	res, err := g.SubmitEmail(t.Context(), "user@example.com")
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	require.Equal(t, "user@example.com", res.Session.Email)
	require.Equal(t, ProviderEmail, res.Session.Provider)
	require.WithinDuration(t, time.Now().Add(24*time.Hour), res.Session.ExpiresAt, time.Minute)

	stored, err := store.Get(t.Context(), res.Session.ID)
	require.NoError(t, err)
	require.Equal(t, "user@example.com", stored.User.Email)

	require.Len(t, mail.sent, 1)
	require.Equal(t, []string{"user@example.com"}, mail.sent[0].To)
	require.Equal(t, before+1, attempts(ProviderEmail, metrics.OutcomeSuccess))
}

func TestSubmitEmail_DomainAllowList(t *testing.T) {
	g := New(Config{AllowedDomains: []string{" Example.COM "}}, oauth2.NewMemorySessionStore(), nil, nil)

	_, err := g.SubmitEmail(t.Context(), "user@EXAMPLE.com")
	require.NoError(t, err)

	allowed := []struct {
		entry string
		email string
	}{
		{"bücher.example", "user@BÜCHER.example"},
		{"bücher.example", "user@xn--bcher-kva.example"},
		{"XN--BCHER-KVA.example", "user@bücher.example"},
		{"ex_ample.com", "user@EX_AMPLE.com"},
	}
	for _, a := range allowed {
		gw := New(Config{AllowedDomains: []string{a.entry}}, oauth2.NewMemorySessionStore(), nil, nil)
		_, err := gw.SubmitEmail(t.Context(), a.email)
		require.NoError(t, err, "%s should be allowed by %s", a.email, a.entry)
	}

	before := attempts(ProviderEmail, metrics.OutcomeRejected)
	_, err = g.SubmitEmail(t.Context(), "user@other.org")
	var ge *login.GatewayError
	require.ErrorAs(t, err, &ge)
	require.Equal(t, ReasonDomainNotAllowed, ge.Reason)
	require.Equal(t, before+1, attempts(ProviderEmail, metrics.OutcomeRejected))
}

func TestSubmitEmail_LogsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	g := New(Config{}, oauth2.NewMemorySessionStore(), nil, zap.New(core))
	ctx := context.WithValue(t.Context(), middleware.RequestIDKey, "req-7")

	_, err := g.SubmitEmail(ctx, "user@example.com")
	require.NoError(t, err)

	entries := logs.FilterMessage("email sign-in").All()
	require.Len(t, entries, 1)
	require.Equal(t, "req-7", entries[0].ContextMap()["request_id"])
}

func TestSubmitEmail_StoreFailureIsOpaque(t *testing.T) {
	g := New(Config{}, failingStore{}, nil, nil)

	_, err := g.SubmitEmail(t.Context(), "user@example.com")
	require.ErrorContains(t, err, "redis down")
	var ge *login.GatewayError
	require.False(t, errors.As(err, &ge), "store failures should use the generic reason")
}

func TestStartFederatedFlow(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		provider string
		redirect string
		reason   string
	}{
		{"google", "/auth/google/login", "google", "/auth/google/login", ""},
		{"google not configured", "", "google", "", ReasonGoogleDisabled},
		{"unknown provider", "/auth/google/login", "github", "", ReasonUnknownProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(Config{GoogleLoginPath: tt.path}, oauth2.NewMemorySessionStore(), nil, nil)
			res, err := g.StartFederatedFlow(t.Context(), tt.provider)
			if tt.reason == "" {
				require.NoError(t, err)
				require.Equal(t, tt.redirect, res.RedirectURL)
				return
			}
			var ge *login.GatewayError
			require.ErrorAs(t, err, &ge)
			require.Equal(t, tt.reason, ge.Reason)
		})
	}
}

func TestSessions_RoundTrip(t *testing.T) {
	store := oauth2.NewMemorySessionStore()
	cookie := oauth2.Cookie{Name: "test_session"}
	s := NewSessions(store, cookie, nil)
	g := New(Config{}, store, nil, nil)

	res, err := g.SubmitEmail(t.Context(), "user@example.com")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Issue(rec, res.Session)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, res.Session.ID, cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)

	protected := s.RequireAuth("/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(oauth2.UserFromContext(r.Context()).Email))
	}))

	// signed in
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user@example.com", rec.Body.String())

	// sign out
	rec = httptest.NewRecorder()
	require.NoError(t, s.End(rec, req))
	require.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)

	// the old cookie no longer works
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestSessions_RequireAuthHTMX(t *testing.T) {
	s := NewSessions(oauth2.NewMemorySessionStore(), oauth2.Cookie{}, nil)
	h := s.RequireAuth("/login")(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "/login", rec.Header().Get("HX-Redirect"))
}

func TestGoogleCallbacks(t *testing.T) {
	mgr := session.NewManager(session.NewMemoryStore(time.Minute), session.Config{})
	t.Cleanup(func() { mgr.Close() })
	onSuccess, onError := GoogleCallbacks("/", "/login", nil)

	t.Run("success", func(t *testing.T) {
		before := attempts(ProviderGoogle, metrics.OutcomeSuccess)
		rec := httptest.NewRecorder()
		onSuccess(rec, httptest.NewRequest(http.MethodGet, "/auth/google/callback", nil), &oauth2.User{})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/", rec.Header().Get("Location"))
		require.Equal(t, before+1, attempts(ProviderGoogle, metrics.OutcomeSuccess))
	})

	t.Run("denied flashes reason", func(t *testing.T) {
		var flashed string
		h := session.Middleware(mgr, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			onError(w, r, &oauth2.ProviderError{Code: "access_denied"})
			flashed = session.FromContext(r.Context()).GetString("_flash_" + login.FlashError)
		}))

		before := attempts(ProviderGoogle, metrics.OutcomeRejected)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google/callback?error=access_denied", nil))

		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/login", rec.Header().Get("Location"))
		require.Equal(t, "Google sign-in was cancelled.", flashed)
		require.NotEmpty(t, rec.Result().Cookies(), "flash must be persisted")
		require.Equal(t, before+1, attempts(ProviderGoogle, metrics.OutcomeRejected))
	})
}
