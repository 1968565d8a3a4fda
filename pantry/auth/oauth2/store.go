// pantry/auth/oauth2/store.go
package oauth2

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore is an in-memory SessionStore for development and
// single-instance deployments. Use RedisSessionStore across instances.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*Session),
	}
}

// Save stores a session in memory.
func (s *MemorySessionStore) Save(_ context.Context, session *Session) error {
	cp := *session
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = &cp
	return nil
}

// Get retrieves a session by ID. Returns nil if not found or expired.
func (s *MemorySessionStore) Get(_ context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok || session.IsExpired() {
		return nil, nil
	}
	cp := *session
	return &cp, nil
}

// Delete removes a session by ID.
func (s *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Cleanup removes all expired sessions and returns how many were removed.
func (s *MemorySessionStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, session := range s.sessions {
		if session.IsExpired() {
			delete(s.sessions, id)
			count++
		}
	}
	return count
}

// StartCleanupTask runs Cleanup every interval until the returned func is called.
func (s *MemorySessionStore) StartCleanupTask(interval time.Duration) func() {
	return every(interval, func() { s.Cleanup() })
}

// MemoryStateStore is an in-memory StateStore.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
}

// NewMemoryStateStore creates a new in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		states: make(map[string]time.Time),
	}
}

// Save stores a state value with an expiration time.
func (s *MemoryStateStore) Save(_ context.Context, state string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = expiresAt
	return nil
}

// Validate consumes state. It returns true only for a known, unexpired state.
func (s *MemoryStateStore) Validate(_ context.Context, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.states[state]
	if !ok {
		return false, nil
	}
	// one-time use
	delete(s.states, state)
	return !time.Now().After(expiresAt), nil
}

// Cleanup removes all expired states.
func (s *MemoryStateStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	count := 0
	for state, expiresAt := range s.states {
		if now.After(expiresAt) {
			delete(s.states, state)
			count++
		}
	}
	return count
}

// StartCleanupTask runs Cleanup every interval until the returned func is called.
func (s *MemoryStateStore) StartCleanupTask(interval time.Duration) func() {
	return every(interval, func() { s.Cleanup() })
}

func every(interval time.Duration, fn func()) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
