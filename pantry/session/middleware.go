// pantry/session/middleware.go
package session

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

type contextKey string

const sessionContextKey contextKey = "session"

// Middleware loads the session for every request and saves it, if
// modified, just before the response headers go out.
func Middleware(m *Manager, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := m.Get(r)
			if err != nil {
				logger.Warn("session load failed", zap.Error(err))
				if s, err = m.New(); err != nil {
					http.Error(w, "session unavailable", http.StatusInternalServerError)
					return
				}
			}

			r = r.WithContext(WithSession(r.Context(), s))
			sw := &sessionWriter{ResponseWriter: w, request: r, session: s, manager: m, logger: logger}

			next.ServeHTTP(sw, r)

			// Handler wrote nothing: flush here.
			sw.flush()
		})
	}
}

// WithSession attaches s to ctx. Middleware does this; tests may too.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// FromContext retrieves the session from the request context, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionContextKey).(*Session)
	return s
}

type sessionWriter struct {
	http.ResponseWriter
	request *http.Request
	session *Session
	manager *Manager
	logger  *zap.Logger
	flushed bool
}

func (sw *sessionWriter) flush() {
	if sw.flushed {
		return
	}
	sw.flushed = true
	if !sw.session.Modified() {
		return
	}
	if err := sw.manager.Save(sw.ResponseWriter, sw.request, sw.session); err != nil {
		sw.logger.Warn("session save failed", zap.Error(err))
	}
}

func (sw *sessionWriter) WriteHeader(code int) {
	sw.flush()
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *sessionWriter) Write(b []byte) (int, error) {
	sw.flush()
	return sw.ResponseWriter.Write(b)
}

// Flash stores a one-time message under key.
func Flash(s *Session, key, value string) {
	s.Set("_flash_"+key, value)
}

// PopFlash returns and removes the flash message under key.
func PopFlash(s *Session, key string) string {
	k := "_flash_" + key
	v := s.GetString(k)
	s.Delete(k)
	return v
}
