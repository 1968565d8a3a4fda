// pantry/auth/oauth2/oauth2.go
package oauth2

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// User represents the authenticated user behind a session. For federated
// logins it is filled from the provider's userinfo endpoint; for local
// email logins only Email and Provider are set.
type User struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	EmailVerified bool           `json:"email_verified"`
	Name          string         `json:"name"`
	Picture       string         `json:"picture"`
	Provider      string         `json:"provider"` // "google", "email"
	Raw           map[string]any `json:"raw,omitempty"`
	AccessToken   string         `json:"-"`
	RefreshToken  string         `json:"-"`
	TokenExpiry   time.Time      `json:"token_expiry"`
}

// Session is an authenticated visitor session.
type Session struct {
	ID        string    `json:"id"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// NewSession builds a session for user with a fresh random ID.
func NewSession(user User, ttl time.Duration) (*Session, error) {
	id, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	now := time.Now()
	return &Session{
		ID:        id,
		User:      user,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// SessionStore persists authenticated sessions.
type SessionStore interface {
	// Save stores a session keyed by its ID.
	Save(ctx context.Context, session *Session) error

	// Get retrieves a session by ID. Returns nil, nil if not found or expired.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Delete removes a session by ID.
	Delete(ctx context.Context, sessionID string) error
}

// StateStore stores OAuth2 state parameters for CSRF protection.
type StateStore interface {
	// Save stores a state value with an expiration time.
	Save(ctx context.Context, state string, expiresAt time.Time) error

	// Validate checks if a state exists and removes it. Returns true if valid.
	Validate(ctx context.Context, state string) (bool, error)
}

// UserInfoFetcher retrieves user information from an OAuth2 provider.
type UserInfoFetcher func(ctx context.Context, token *oauth2.Token) (*User, error)

// Cookie describes the session cookie shared by every login flow.
type Cookie struct {
	// Name defaults to "whiskers_session".
	Name string
	// Path defaults to "/".
	Path     string
	Secure   bool
	SameSite http.SameSite
}

func (c Cookie) withDefaults() Cookie {
	if c.Name == "" {
		c.Name = "whiskers_session"
	}
	if c.Path == "" {
		c.Path = "/"
	}
	if c.SameSite == 0 {
		c.SameSite = http.SameSiteLaxMode
	}
	return c
}

// Set writes the session cookie for s.
func (c Cookie) Set(w http.ResponseWriter, s *Session) {
	c = c.withDefaults()
	maxAge := int(time.Until(s.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    s.ID,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: c.SameSite,
		MaxAge:   maxAge,
	})
}

// Clear expires the session cookie.
func (c Cookie) Clear(w http.ResponseWriter) {
	c = c.withDefaults()
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: c.SameSite,
		MaxAge:   -1,
	})
}

// Value returns the session ID carried by r, or "" if there is none.
func (c Cookie) Value(r *http.Request) string {
	c = c.withDefaults()
	ck, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return ck.Value
}

// Config holds the configuration for an OAuth2 provider.
type Config struct {
	// ProviderName identifies this provider (e.g., "google").
	ProviderName string

	OAuth2Config  *oauth2.Config
	FetchUserInfo UserInfoFetcher
	SessionStore  SessionStore
	StateStore    StateStore

	// SessionDuration controls how long sessions remain valid.
	// Default: 24 hours.
	SessionDuration time.Duration

	// StateDuration controls how long OAuth2 state remains valid.
	// Default: 10 minutes.
	StateDuration time.Duration

	Cookie Cookie

	// OnSuccess is called after the session cookie is set.
	// If nil, redirects to "/".
	OnSuccess func(w http.ResponseWriter, r *http.Request, user *User)

	// OnError is called when the flow fails at any step.
	// If nil, returns 401.
	OnError func(w http.ResponseWriter, r *http.Request, err error)

	Logger *zap.Logger
}

// Provider handles the OAuth2 authorization-code flow for one provider.
type Provider struct {
	config *Config
	logger *zap.Logger
}

// NewProvider creates a new OAuth2 provider with the given configuration.
func NewProvider(cfg *Config) (*Provider, error) {
	if cfg.OAuth2Config == nil {
		return nil, errors.New("oauth2: OAuth2Config is required")
	}
	if cfg.FetchUserInfo == nil {
		return nil, errors.New("oauth2: FetchUserInfo is required")
	}
	if cfg.SessionStore == nil {
		return nil, errors.New("oauth2: SessionStore is required")
	}
	if cfg.StateStore == nil {
		return nil, errors.New("oauth2: StateStore is required")
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "oauth2"
	}
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = 24 * time.Hour
	}
	if cfg.StateDuration == 0 {
		cfg.StateDuration = 10 * time.Minute
	}
	cfg.Cookie = cfg.Cookie.withDefaults()

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Provider{
		config: cfg,
		logger: logger,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return p.config.ProviderName
}

// LoginHandler starts the flow: it stores a fresh state and redirects to
// the provider's consent page.
func (p *Provider) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := randomToken()
		if err != nil {
			p.logger.Error("failed to generate OAuth2 state",
				zap.String("provider", p.config.ProviderName),
				zap.Error(err),
			)
			p.handleError(w, r, fmt.Errorf("failed to generate state: %w", err))
			return
		}

		expiresAt := time.Now().Add(p.config.StateDuration)
		if err := p.config.StateStore.Save(r.Context(), state, expiresAt); err != nil {
			p.logger.Error("failed to save OAuth2 state",
				zap.String("provider", p.config.ProviderName),
				zap.Error(err),
			)
			p.handleError(w, r, fmt.Errorf("failed to save state: %w", err))
			return
		}

		url := p.config.OAuth2Config.AuthCodeURL(state)

		p.logger.Debug("initiating OAuth2 flow",
			zap.String("provider", p.config.ProviderName),
		)

		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
	}
}

// CallbackHandler validates state, exchanges the code, fetches the user,
// stores a session and sets the session cookie.
func (p *Provider) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		if errParam := q.Get("error"); errParam != "" {
			errDesc := q.Get("error_description")
			p.logger.Warn("OAuth2 provider returned error",
				zap.String("provider", p.config.ProviderName),
				zap.String("error", errParam),
				zap.String("description", errDesc),
			)
			p.handleError(w, r, &ProviderError{Code: errParam, Description: errDesc})
			return
		}

		state := q.Get("state")
		if state == "" {
			p.logger.Warn("missing OAuth2 state parameter",
				zap.String("provider", p.config.ProviderName),
			)
			p.handleError(w, r, errors.New("missing state parameter"))
			return
		}

		valid, err := p.config.StateStore.Validate(ctx, state)
		if err != nil {
			p.logger.Error("failed to validate OAuth2 state",
				zap.String("provider", p.config.ProviderName),
				zap.Error(err),
			)
			p.handleError(w, r, fmt.Errorf("failed to validate state: %w", err))
			return
		}
		if !valid {
			p.logger.Warn("invalid OAuth2 state parameter",
				zap.String("provider", p.config.ProviderName),
			)
			p.handleError(w, r, errors.New("invalid or expired state"))
			return
		}

		code := q.Get("code")
		if code == "" {
			p.handleError(w, r, errors.New("missing code parameter"))
			return
		}

		token, err := p.config.OAuth2Config.Exchange(ctx, code)
		if err != nil {
			p.logger.Error("failed to exchange OAuth2 code",
				zap.String("provider", p.config.ProviderName),
				zap.Error(err),
			)
			p.handleError(w, r, fmt.Errorf("failed to exchange code: %w", err))
			return
		}

		user, err := p.config.FetchUserInfo(ctx, token)
		if err != nil {
			p.logger.Error("failed to fetch user info",
				zap.String("provider", p.config.ProviderName),
				zap.Error(err),
			)
			p.handleError(w, r, fmt.Errorf("failed to fetch user info: %w", err))
			return
		}

		user.Provider = p.config.ProviderName
		user.AccessToken = token.AccessToken
		user.RefreshToken = token.RefreshToken
		user.TokenExpiry = token.Expiry

		session, err := NewSession(*user, p.config.SessionDuration)
		if err != nil {
			p.handleError(w, r, err)
			return
		}
		if err := p.config.SessionStore.Save(ctx, session); err != nil {
			p.logger.Error("failed to save session",
				zap.String("provider", p.config.ProviderName),
				zap.Error(err),
			)
			p.handleError(w, r, fmt.Errorf("failed to save session: %w", err))
			return
		}

		p.config.Cookie.Set(w, session)

		p.logger.Info("OAuth2 authentication successful",
			zap.String("provider", p.config.ProviderName),
			zap.String("user_id", user.ID),
		)

		if p.config.OnSuccess != nil {
			p.config.OnSuccess(w, r, user)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// ProviderError is returned when the provider redirects back with an error.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return "provider error: " + e.Code
	}
	return "provider error: " + e.Code + " - " + e.Description
}

func (p *Provider) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if p.config.OnError != nil {
		p.config.OnError(w, r, err)
		return
	}
	http.Error(w, "authentication failed", http.StatusUnauthorized)
}

// randomToken returns 32 bytes of crypto randomness, URL-safe encoded.
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

type contextKey string

const userContextKey contextKey = "oauth2_user"

// ContextWithUser returns a new context with the user attached.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the authenticated user from the context.
// Returns nil if no user is present.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey).(*User)
	return user
}
