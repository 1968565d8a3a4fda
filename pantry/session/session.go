// Package session provides cookie-keyed server-side sessions for
// short-lived visitor state (flash messages, the mounted login view).
// Authenticated identity lives in pantry/auth/oauth2, not here.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"
)

// Session is one visitor's key-value data.
type Session struct {
	mu        sync.RWMutex
	id        string
	data      map[string]any
	isNew     bool
	modified  bool
	expiresAt time.Time
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// IsNew returns true if the session was created during this request.
func (s *Session) IsNew() bool {
	return s.isNew
}

// Get retrieves a value from the session.
func (s *Session) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	return val, ok
}

// GetString retrieves a string value, or "" if missing or not a string.
func (s *Session) GetString(key string) string {
	val, _ := s.Get(key)
	str, _ := val.(string)
	return str
}

// Set stores a value in the session.
func (s *Session) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.modified = true
}

// Delete removes a value from the session.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return
	}
	delete(s.data, key)
	s.modified = true
}

// Modified returns true if the session data has been changed.
func (s *Session) Modified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified
}

// Store is a session storage backend.
type Store interface {
	// Load returns ErrNotFound if the session doesn't exist.
	Load(ctx context.Context, id string) (*SessionData, error)
	Save(ctx context.Context, data *SessionData) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// SessionData is the serialized form kept by a Store.
type SessionData struct {
	ID        string         `json:"id"`
	Data      map[string]any `json:"data"`
	ExpiresAt time.Time      `json:"expires_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *SessionData) MarshalBinary() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *SessionData) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, s)
}

var (
	ErrNotFound = errors.New("session: not found")
	ErrExpired  = errors.New("session: expired")
)

// Config configures the session manager.
type Config struct {
	// CookieName defaults to "whiskers_visit".
	CookieName string
	// MaxAge defaults to 24 hours.
	MaxAge time.Duration
	// Path defaults to "/".
	Path     string
	Secure   bool
	SameSite http.SameSite
}

// Manager loads and persists sessions through a Store.
type Manager struct {
	store  Store
	config Config
}

// NewManager creates a session manager with the given store and config.
func NewManager(store Store, cfg Config) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "whiskers_visit"
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}
	return &Manager{store: store, config: cfg}
}

// Get returns the request's session, or a new one if it has none.
func (m *Manager) Get(r *http.Request) (*Session, error) {
	if cookie, err := r.Cookie(m.config.CookieName); err == nil && cookie.Value != "" {
		data, err := m.store.Load(r.Context(), cookie.Value)
		if err == nil {
			if data.Data == nil {
				data.Data = make(map[string]any)
			}
			return &Session{
				id:        data.ID,
				data:      data.Data,
				expiresAt: data.ExpiresAt,
			}, nil
		}
	}
	return m.New()
}

// New creates an empty session with a fresh ID.
func (m *Manager) New() (*Session, error) {
	id, err := generateID()
	if err != nil {
		return nil, err
	}
	return &Session{
		id:        id,
		data:      make(map[string]any),
		isNew:     true,
		expiresAt: time.Now().Add(m.config.MaxAge),
	}, nil
}

// Save persists the session and sets the cookie.
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, s *Session) error {
	s.mu.Lock()
	data := &SessionData{
		ID:        s.id,
		Data:      make(map[string]any, len(s.data)),
		ExpiresAt: s.expiresAt,
		UpdatedAt: time.Now(),
	}
	for k, v := range s.data {
		data.Data[k] = v
	}
	s.modified = false
	s.mu.Unlock()

	if err := m.store.Save(r.Context(), data); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    s.id,
		Path:     m.config.Path,
		MaxAge:   int(m.config.MaxAge.Seconds()),
		Secure:   m.config.Secure,
		HttpOnly: true,
		SameSite: m.config.SameSite,
	})
	return nil
}

// Close closes the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}

func generateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
