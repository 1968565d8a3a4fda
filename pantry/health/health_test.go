package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestHandler(t *testing.T) {
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus int
		want       Response
	}{
		{"liveness", nil, http.StatusOK, Response{Status: "ok"}},
		{"all ok", map[string]Check{"redis": func(context.Context) error { return nil }, "noop": nil},
			http.StatusOK, Response{Status: "ok", Checks: map[string]string{"redis": "ok", "noop": "ok"}}},
		{"one failing", map[string]Check{"redis": func(context.Context) error { return errors.New("dial refused") }},
			http.StatusServiceUnavailable, Response{Status: "error", Checks: map[string]string{"redis": "error: dial refused"}}},
		{"timeout", map[string]Check{"redis": slow},
			http.StatusServiceUnavailable, Response{Status: "error", Checks: map[string]string{"redis": "error: context deadline exceeded"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Handler(tt.checks, 20*time.Millisecond, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var got Response
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("response mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
