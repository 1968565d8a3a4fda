package login

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	_ "github.com/dalemusser/whiskers/internal/app/resources"
	"github.com/dalemusser/whiskers/internal/domain/models"
	"github.com/dalemusser/whiskers/pantry/session"
	"github.com/dalemusser/whiskers/pantry/validate"
	"github.com/dalemusser/whiskers/templates"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeSessions struct {
	issued []*models.Session
	ended  int
}

func (f *fakeSessions) Issue(w http.ResponseWriter, s *models.Session) {
	f.issued = append(f.issued, s)
	http.SetCookie(w, &http.Cookie{Name: "whiskers_session", Value: s.ID, Path: "/"})
}

func (f *fakeSessions) End(w http.ResponseWriter, r *http.Request) error {
	f.ended++
	return nil
}

type harness struct {
	srv      *httptest.Server
	client   *http.Client
	gateway  *MockGateway
	sessions *fakeSessions
	views    *Views
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	eng := templates.New(nil)
	require.NoError(t, eng.Boot())

	gw := NewMockGateway(gomock.NewController(t))
	views := NewViews(func() *Controller { return NewController(validate.DefaultPolicy(), gw) }, time.Minute)
	t.Cleanup(views.Close)

	store := session.NewMemoryStore(time.Minute)
	mgr := session.NewManager(store, session.Config{})
	t.Cleanup(func() { mgr.Close() })

	fs := &fakeSessions{}
	r := chi.NewRouter()
	r.Use(session.Middleware(mgr, nil))
	// lets a test plant a flash the way the federated callback does
	r.Get("/test/flash", func(w http.ResponseWriter, r *http.Request) {
		session.Flash(session.FromContext(r.Context()), FlashError, r.URL.Query().Get("reason"))
		w.WriteHeader(http.StatusNoContent)
	})
	NewHandler(views, eng, fs, nil).Mount(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &harness{srv: srv, client: client, gateway: gw, sessions: fs, views: views}
}

func (h *harness) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := h.client.Get(h.srv.URL + path)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (h *harness) post(t *testing.T, path string, form url.Values, htmxTarget string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, h.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmxTarget != "" {
		req.Header.Set("HX-Request", "true")
		req.Header.Set("HX-Target", htmxTarget)
	}
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestLoginPage_Renders(t *testing.T) {
	h := newHarness(t)
	resp, body := h.get(t, "/login")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "<h1>Login</h1>")
	require.Contains(t, body, "Login with Google")
	require.Contains(t, body, `placeholder="Email"`)
	require.Regexp(t, `data-testid="email-submit"\s+disabled`, body)
	require.NotContains(t, body, `data-testid="login-error"`)
	require.Equal(t, 1, h.views.Len())
}

func TestLoginInput_InvalidShowsErrorSnippet(t *testing.T) {
	h := newHarness(t)
	h.get(t, "/login")

	resp, body := h.post(t, "/login/input", url.Values{"email": {"invalid"}}, "login-status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotContains(t, body, "<html")
	require.Contains(t, strings.ToLower(body), "invalid email")
	require.Regexp(t, `data-testid="email-submit"\s+disabled`, body)

	_, body = h.post(t, "/login/input", url.Values{"email": {"user@example.com"}}, "login-status")
	require.NotContains(t, body, "disabled")
	require.NotContains(t, body, `data-testid="login-error"`)
	require.Equal(t, 1, h.views.Len())
}

func TestLoginEmail_SuccessIssuesSessionAndRedirects(t *testing.T) {
	h := newHarness(t)
	h.get(t, "/login")

	sess := &models.Session{ID: "abc", Email: "user@example.com", Provider: "email"}
	h.gateway.EXPECT().SubmitEmail(gomock.Any(), "user@example.com").Return(Result{Session: sess}, nil)

	resp, _ := h.post(t, "/login/email", url.Values{"email": {"user@example.com"}}, "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
	require.Equal(t, []*models.Session{sess}, h.sessions.issued)
	require.Zero(t, h.views.Len())
}

func TestLoginEmail_HTMXRedirect(t *testing.T) {
	h := newHarness(t)
	h.gateway.EXPECT().SubmitEmail(gomock.Any(), "user@example.com").
		Return(Result{Session: &models.Session{ID: "abc"}}, nil)

	resp, _ := h.post(t, "/login/email", url.Values{"email": {"user@example.com"}}, "login-form")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("HX-Redirect"))
}

func TestLoginEmail_InvalidNeverReachesGateway(t *testing.T) {
	h := newHarness(t)
	resp, body := h.post(t, "/login/email", url.Values{"email": {"invalid"}}, "login-form")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `id="login-form"`)
	require.Contains(t, body, "Invalid email address")
	require.Empty(t, h.sessions.issued)
}

func TestLoginEmail_GatewayRejection(t *testing.T) {
	h := newHarness(t)
	h.gateway.EXPECT().SubmitEmail(gomock.Any(), "user@blocked.example").
		Return(Result{}, &GatewayError{Reason: "Sign-in is not available for this email domain"})

	_, body := h.post(t, "/login/email", url.Values{"email": {"user@blocked.example"}}, "login-form")
	require.Contains(t, body, "Sign-in is not available for this email domain")
	require.Contains(t, body, `value="user@blocked.example"`)
	require.Empty(t, h.sessions.issued)
}

func TestLoginGoogle_RedirectsToProvider(t *testing.T) {
	h := newHarness(t)
	h.gateway.EXPECT().StartFederatedFlow(gomock.Any(), "google").
		Return(Result{RedirectURL: "/auth/google/login"}, nil)

	resp, _ := h.post(t, "/login/google", nil, "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/auth/google/login", resp.Header.Get("Location"))
}

func TestLoginPage_ShowsFlashedFailureOnce(t *testing.T) {
	h := newHarness(t)
	h.get(t, "/test/flash?reason="+url.QueryEscape(`<b>access_denied</b> & more`))

	_, body := h.get(t, "/login")
	require.Contains(t, body, "access_denied &amp; more")
	require.NotContains(t, body, "<b>")

	_, body = h.get(t, "/login")
	require.NotContains(t, body, "access_denied")
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.get(t, "/login")

	resp, _ := h.post(t, "/logout", nil, "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))
	require.Equal(t, 1, h.sessions.ended)
	require.Zero(t, h.views.Len())
}

func TestLoginActions_SubmitLimit(t *testing.T) {
	eng := templates.New(nil)
	require.NoError(t, eng.Boot())
	views := NewViews(func() *Controller { return NewController(validate.DefaultPolicy(), nil) }, time.Minute)
	t.Cleanup(views.Close)
	mgr := session.NewManager(session.NewMemoryStore(time.Minute), session.Config{})
	t.Cleanup(func() { mgr.Close() })

	h := NewHandler(views, eng, &fakeSessions{}, nil)
	h.SubmitLimit = func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	r := chi.NewRouter()
	r.Use(session.Middleware(mgr, nil))
	h.Mount(r)

	for path, want := range map[string]int{
		"/login/email":  http.StatusTooManyRequests,
		"/login/google": http.StatusTooManyRequests,
		"/login/input":  http.StatusOK,
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("email=x"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.ServeHTTP(rec, req)
		require.Equal(t, want, rec.Code, path)
	}
}
