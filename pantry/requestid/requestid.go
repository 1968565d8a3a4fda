// Package requestid carries chi's request ID past the router: onto
// responses, outgoing HTTP calls and log fields.
package requestid

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Header carries the ID on responses and outgoing requests.
const Header = "X-Request-ID"

// Get returns the request ID set by middleware.RequestID, or "".
func Get(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}

// Field is a zap field for the request ID; a skip field when there is none.
func Field(ctx context.Context) zap.Field {
	if id := Get(ctx); id != "" {
		return zap.String("request_id", id)
	}
	return zap.Skip()
}

// Echo sets the response Header to the request's ID. It must run after
// middleware.RequestID.
func Echo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := Get(r.Context()); id != "" {
			w.Header().Set(Header, id)
		}
		next.ServeHTTP(w, r)
	})
}

// Transport adds the context's request ID to outgoing requests that do
// not already carry one.
type Transport struct {
	// Base defaults to http.DefaultTransport.
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(Header) == "" {
		if id := Get(req.Context()); id != "" {
			// RoundTrippers must not modify the caller's request
			req = req.Clone(req.Context())
			req.Header.Set(Header, id)
		}
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
