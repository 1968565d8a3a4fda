package bootstrap

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/whiskers/config"
	"github.com/dalemusser/whiskers/pantry/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func defaultValues() config.AppConfigValues {
	v := make(config.AppConfigValues, len(appKeys))
	for _, k := range appKeys {
		v[k.Name] = k.Default
	}
	return v
}

func TestAppConfigFrom_Defaults(t *testing.T) {
	cfg, err := appConfigFrom(defaultValues())
	require.NoError(t, err)

	assert.Equal(t, "whiskers_session", cfg.SessionName)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 30*time.Minute, cfg.LoginViewTTL)
	assert.Equal(t, 5, cfg.CatFactsLimit)
	assert.True(t, cfg.RequireLogin)
	assert.Equal(t, validate.DefaultPolicy(), cfg.EmailPolicy, "stricter email checks are opt-in")
	assert.False(t, cfg.GoogleEnabled())
	assert.False(t, cfg.SMTPEnabled())
}

func TestAppConfigFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
		want string
	}{
		{"google half configured", map[string]any{"google_client_id": "id"}, "google_client_secret"},
		{"smtp without from", map[string]any{"smtp_host": "smtp.example.com"}, "smtp_from"},
		{"pprof without key", map[string]any{"enable_pprof": true}, "admin_api_key"},
		{"zero facts", map[string]any{"catfacts_limit": 0}, "catfacts_limit"},
		{"negative rate", map[string]any{"login_rate_per_minute": -1}, "login_rate_per_minute"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := defaultValues()
			for k, val := range tt.set {
				v[k] = val
			}
			_, err := appConfigFrom(v)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

type testApp struct {
	srv    *httptest.Server
	client *http.Client
}

func newTestApp(t *testing.T, set map[string]any) *testApp {
	t.Helper()
	v := defaultValues()
	for k, val := range set {
		v[k] = val
	}
	appCfg, err := appConfigFrom(v)
	require.NoError(t, err)

	deps, err := ConnectDB(t.Context(), &config.CoreConfig{}, appCfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Shutdown(t.Context(), deps, zap.NewNop()) })

	h, err := BuildHandler(&config.CoreConfig{}, appCfg, deps, zap.NewNop())
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testApp{
		srv: srv,
		client: &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}},
	}
}

func (a *testApp) do(t *testing.T, method, path string, hdr http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, a.srv.URL+path, nil)
	require.NoError(t, err)
	for k, vs := range hdr {
		req.Header[k] = vs
	}
	resp, err := a.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestBuildHandler_Routes(t *testing.T) {
	a := newTestApp(t, map[string]any{"admin_api_key": "s3cret"})

	resp, body := a.do(t, http.MethodGet, "/login", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<h1>Login</h1>")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, _ = a.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, body = a.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"ok"`)

	resp, body = a.do(t, http.MethodGet, "/test-component", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `data-testid="test-component"`)

	resp, _ = a.do(t, http.MethodGet, "/version", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = a.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = a.do(t, http.MethodGet, "/metrics", http.Header{"Authorization": {"Bearer s3cret"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// no Google credentials, no Google routes
	resp, _ = a.do(t, http.MethodGet, "/auth/google/login", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBuildHandler_OpenHome(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":[{"fact":"Cats sleep most of the day.","length":26}]}`)
	}))
	t.Cleanup(upstream.Close)

	a := newTestApp(t, map[string]any{
		"require_login":     false,
		"catfacts_base_url": upstream.URL,
	})

	resp, body := a.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Cats sleep most of the day.")
	assert.True(t, strings.Contains(body, `id="cat-list"`))
}

func TestBuildHandler_GoogleRoutes(t *testing.T) {
	a := newTestApp(t, map[string]any{
		"google_client_id":     "client",
		"google_client_secret": "secret",
		"google_redirect_url":  "http://localhost/auth/google/callback",
	})

	resp, _ := a.do(t, http.MethodGet, "/auth/google/login", nil)
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "accounts.google.com")
}
