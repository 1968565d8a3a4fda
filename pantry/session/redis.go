// pantry/session/redis.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Redis-backed session storage.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore creates a store on an existing client. The client is
// owned by the caller; Close does not close it.
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "visit:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// Load retrieves session data by ID.
func (s *RedisStore) Load(ctx context.Context, id string) (*SessionData, error) {
	b, err := s.client.Get(ctx, s.keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var data SessionData
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, err
	}
	if time.Now().After(data.ExpiresAt) {
		return nil, ErrExpired
	}
	return &data, nil
}

// Save stores session data with a TTL derived from ExpiresAt.
func (s *RedisStore) Save(ctx context.Context, data *SessionData) error {
	ttl := time.Until(data.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.keyPrefix+data.ID, b, ttl).Err()
}

// Delete removes a session by ID.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.keyPrefix+id).Err()
}

// Close is a no-op; the shared client is closed by its owner.
func (s *RedisStore) Close() error {
	return nil
}
