package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/whiskers/config"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, tlsReq bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	if tlsReq {
		req.TLS = &tls.ConnectionState{}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSecurityHeaders_Defaults(t *testing.T) {
	rec := serve(SecurityHeaders(DefaultSecurityHeadersOptions())(ok), false)

	tests := []struct {
		header string
		want   string
	}{
		{"X-Frame-Options", "SAMEORIGIN"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
		{"X-XSS-Protection", "1; mode=block"},
		{"Strict-Transport-Security", ""},
		{"Content-Security-Policy", ""},
	}
	for _, tt := range tests {
		if got := rec.Header().Get(tt.header); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	tests := []struct {
		name    string
		preload bool
		tls     bool
		want    string
	}{
		{"plain http", false, false, ""},
		{"tls", false, true, "max-age=31536000; includeSubDomains"},
		{"tls preload", true, true, "max-age=31536000; includeSubDomains; preload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultSecurityHeadersOptions()
			opts.HSTSPreload = tt.preload
			rec := serve(SecurityHeaders(opts)(ok), tt.tls)
			if got := rec.Header().Get("Strict-Transport-Security"); got != tt.want {
				t.Errorf("HSTS = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSecurityHeadersFromConfig(t *testing.T) {
	enabled := &config.CoreConfig{}
	enabled.Security.EnableSecurityHeaders = true
	enabled.Security.XFrameOptions = "DENY"
	enabled.Security.ContentSecurityPolicy = "default-src 'self'"

	disabled := &config.CoreConfig{}
	disabled.Security.XFrameOptions = "DENY"

	tests := []struct {
		name    string
		cfg     *config.CoreConfig
		wantXFO string
		wantCSP string
	}{
		{"enabled", enabled, "DENY", "default-src 'self'"},
		{"disabled", disabled, "", ""},
		{"nil config", nil, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(SecurityHeadersFromConfig(tt.cfg)(ok), false)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if got := rec.Header().Get("X-Frame-Options"); got != tt.wantXFO {
				t.Errorf("X-Frame-Options = %q, want %q", got, tt.wantXFO)
			}
			if got := rec.Header().Get("Content-Security-Policy"); got != tt.wantCSP {
				t.Errorf("CSP = %q, want %q", got, tt.wantCSP)
			}
		})
	}
}
