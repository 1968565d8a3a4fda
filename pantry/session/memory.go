// pantry/session/memory.go
package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements in-memory session storage.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionData
	stopCh   chan struct{}
	doneCh   chan struct{}
	once     sync.Once
}

// NewMemoryStore creates a memory store that drops expired sessions every
// cleanupInterval (default 10 minutes).
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	s := &MemoryStore{
		sessions: make(map[string]*SessionData),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go s.cleanup(cleanupInterval)
	return s
}

// Load retrieves session data by ID.
func (s *MemoryStore) Load(_ context.Context, id string) (*SessionData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if time.Now().After(data.ExpiresAt) {
		return nil, ErrExpired
	}
	return copySessionData(data), nil
}

// Save stores a copy of data.
func (s *MemoryStore) Save(_ context.Context, data *SessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[data.ID] = copySessionData(data)
	return nil
}

// Delete removes a session by ID.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stopCh) })
	<-s.doneCh
	return nil
}

// Size returns the number of stored sessions.
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) cleanup(interval time.Duration) {
	defer close(s.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

func (s *MemoryStore) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, data := range s.sessions {
		if now.After(data.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}

func copySessionData(data *SessionData) *SessionData {
	m := make(map[string]any, len(data.Data))
	for k, v := range data.Data {
		m[k] = v
	}
	return &SessionData{
		ID:        data.ID,
		Data:      m,
		ExpiresAt: data.ExpiresAt,
		UpdatedAt: data.UpdatedAt,
	}
}
