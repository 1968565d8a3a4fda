// Package timeout bounds how long a request's context lives.
package timeout

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout applies when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config configures Middleware.
type Config struct {
	// Timeout is the longest a request context lives.
	Timeout time.Duration

	// Skipper leaves matching requests unbounded (profiling, streams).
	Skipper func(r *http.Request) bool
}

// Middleware gives each request a context deadline. Handlers that pass
// r.Context() to upstream calls give up when it expires; the handler still
// writes its own response.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skipper != nil && cfg.Skipper(r) {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), cfg.Timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Remaining returns the time left before ctx expires, or -1 when ctx has
// no deadline.
func Remaining(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return -1
	}
	return max(time.Until(deadline), 0)
}

// SkipPaths skips requests whose path starts with any prefix.
func SkipPaths(prefixes ...string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(r.URL.Path, p) {
				return true
			}
		}
		return false
	}
}
