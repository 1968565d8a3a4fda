package authgate

import (
	"errors"
	"net/http"

	"github.com/dalemusser/whiskers/httputil"
	"github.com/dalemusser/whiskers/internal/app/features/login"
	"github.com/dalemusser/whiskers/internal/domain/models"
	"github.com/dalemusser/whiskers/metrics"
	"github.com/dalemusser/whiskers/pantry/auth/oauth2"
	"github.com/dalemusser/whiskers/pantry/session"
	"go.uber.org/zap"
)

// Sessions issues and checks the authenticated-session cookie. It uses
// the same store and cookie as the Google provider, so both sign-in
// paths produce interchangeable sessions.
type Sessions struct {
	store  oauth2.SessionStore
	cookie oauth2.Cookie
	logger *zap.Logger
}

var _ login.Sessions = (*Sessions)(nil)

// NewSessions wraps store and cookie.
func NewSessions(store oauth2.SessionStore, cookie oauth2.Cookie, logger *zap.Logger) *Sessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sessions{store: store, cookie: cookie, logger: logger}
}

// Issue sets the cookie for s.
func (s *Sessions) Issue(w http.ResponseWriter, sess *models.Session) {
	s.cookie.Set(w, &oauth2.Session{ID: sess.ID, ExpiresAt: sess.ExpiresAt})
}

// Current returns the request's session, or nil if it has none.
func (s *Sessions) Current(r *http.Request) (*oauth2.Session, error) {
	id := s.cookie.Value(r)
	if id == "" {
		return nil, nil
	}
	return s.store.Get(r.Context(), id)
}

// End deletes the request's session and clears the cookie.
func (s *Sessions) End(w http.ResponseWriter, r *http.Request) error {
	s.cookie.Clear(w)
	if id := s.cookie.Value(r); id != "" {
		return s.store.Delete(r.Context(), id)
	}
	return nil
}

// RequireAuth sends visitors without a session to loginURL and puts the
// signed-in user on the request context for everyone else.
func (s *Sessions) RequireAuth(loginURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := s.Current(r)
			if err != nil {
				s.logger.Error("session lookup failed", zap.Error(err))
			}
			if sess == nil {
				httputil.Redirect(w, r, loginURL)
				return
			}
			next.ServeHTTP(w, r.WithContext(oauth2.ContextWithUser(r.Context(), &sess.User)))
		})
	}
}

// LoadUser puts the signed-in user, if any, on the request context.
func (s *Sessions) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess, err := s.Current(r); err == nil && sess != nil {
			r = r.WithContext(oauth2.ContextWithUser(r.Context(), &sess.User))
		}
		next.ServeHTTP(w, r)
	})
}

// GoogleCallbacks returns the OnSuccess and OnError hooks for the Google
// provider. Success lands on home; failure flashes a reason into the
// visitor's cookie session and returns to loginURL, where the login view
// shows it.
func GoogleCallbacks(home, loginURL string, logger *zap.Logger) (
	onSuccess func(http.ResponseWriter, *http.Request, *oauth2.User),
	onError func(http.ResponseWriter, *http.Request, error),
) {
	if logger == nil {
		logger = zap.NewNop()
	}
	onSuccess = func(w http.ResponseWriter, r *http.Request, _ *oauth2.User) {
		metrics.RecordAuthAttempt(ProviderGoogle, metrics.OutcomeSuccess)
		http.Redirect(w, r, home, http.StatusSeeOther)
	}
	onError = func(w http.ResponseWriter, r *http.Request, err error) {
		reason := "Google sign-in failed. Please try again."
		outcome := metrics.OutcomeError
		var pe *oauth2.ProviderError
		if errors.As(err, &pe) {
			outcome = metrics.OutcomeRejected
			if pe.Code == "access_denied" {
				reason = "Google sign-in was cancelled."
			}
		}
		metrics.RecordAuthAttempt(ProviderGoogle, outcome)
		logger.Warn("google sign-in failed", zap.Error(err))

		if sess := session.FromContext(r.Context()); sess != nil {
			session.Flash(sess, login.FlashError, reason)
		}
		http.Redirect(w, r, loginURL, http.StatusSeeOther)
	}
	return onSuccess, onError
}
