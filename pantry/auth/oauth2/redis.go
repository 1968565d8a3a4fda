// pantry/auth/oauth2/redis.go
package oauth2

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps sessions in Redis with a TTL matching ExpiresAt.
type RedisSessionStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisSessionStore creates a session store on an existing client.
// keyPrefix defaults to "auth:session:".
func NewRedisSessionStore(client redis.UniversalClient, keyPrefix string) *RedisSessionStore {
	if keyPrefix == "" {
		keyPrefix = "auth:session:"
	}
	return &RedisSessionStore{client: client, keyPrefix: keyPrefix}
}

// Save stores a session. Already-expired sessions are not written.
func (s *RedisSessionStore) Save(ctx context.Context, session *Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.keyPrefix+session.ID, b, ttl).Err()
}

// Get retrieves a session by ID. Returns nil, nil when missing.
func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	b, err := s.client.Get(ctx, s.keyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var session Session
	if err := json.Unmarshal(b, &session); err != nil {
		return nil, err
	}
	if session.IsExpired() {
		return nil, nil
	}
	return &session, nil
}

// Delete removes a session by ID.
func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.keyPrefix+sessionID).Err()
}

// RedisStateStore keeps OAuth2 state values in Redis.
type RedisStateStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStateStore creates a state store on an existing client.
// keyPrefix defaults to "auth:state:".
func NewRedisStateStore(client redis.UniversalClient, keyPrefix string) *RedisStateStore {
	if keyPrefix == "" {
		keyPrefix = "auth:state:"
	}
	return &RedisStateStore{client: client, keyPrefix: keyPrefix}
}

// Save stores state until expiresAt.
func (s *RedisStateStore) Save(ctx context.Context, state string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.keyPrefix+state, "1", ttl).Err()
}

// Validate consumes state atomically with GETDEL.
func (s *RedisStateStore) Validate(ctx context.Context, state string) (bool, error) {
	err := s.client.GetDel(ctx, s.keyPrefix+state).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
