package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestTransport_PropagatesID(t *testing.T) {
	var got string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(Header)
	}))
	defer upstream.Close()

	client := &http.Client{Transport: &Transport{}}
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "host/abc-000001")

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, upstream.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got != "host/abc-000001" {
		t.Errorf("upstream saw %q", got)
	}
	if req.Header.Get(Header) != "" {
		t.Error("caller's request was modified")
	}
}

func TestField(t *testing.T) {
	if f := Field(context.Background()); f.Key != "" {
		t.Errorf("Field without ID = %+v, want skip", f)
	}
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "x")
	if f := Field(ctx); f.Key != "request_id" || f.String != "x" {
		t.Errorf("Field = %+v", f)
	}
}

func TestEcho(t *testing.T) {
	h := middleware.RequestID(Echo(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get(Header) == "" {
		t.Error("no request ID on response")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "from-proxy")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(Header); got != "from-proxy" {
		t.Errorf("Header = %q, want the inbound ID", got)
	}
}
