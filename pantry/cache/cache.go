// Package cache provides a small byte cache with memory and Redis backends,
// plus JSON read-through helpers.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Cache is a TTL key-value byte store.
type Cache interface {
	// Get returns ErrNotFound for missing or expired keys.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value for ttl; ttl <= 0 never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

var (
	ErrNotFound = errors.New("cache: key not found")
	ErrClosed   = errors.New("cache: cache is closed")
)

// GetJSON reads and decodes a JSON value.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, error) {
	var result T
	data, err := c.Get(ctx, key)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("cache: decode %q: %w", key, err)
	}
	return result, nil
}

// SetJSON encodes and stores value.
func SetJSON(ctx context.Context, c Cache, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}
	return c.Set(ctx, key, data, ttl)
}

// GetOrSetJSON returns the cached value for key, or computes, stores and
// returns it. A cache backend failure (other than a miss or a corrupt
// entry) is returned without calling compute. A failed store after a
// successful compute still returns the computed value alongside the error.
func GetOrSetJSON[T any](ctx context.Context, c Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	result, err := GetJSON[T](ctx, c, key)
	if err == nil {
		return result, nil
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if !errors.Is(err, ErrNotFound) && !errors.As(err, &syntaxErr) && !errors.As(err, &typeErr) {
		return result, err
	}

	result, err = compute(ctx)
	if err != nil {
		return result, err
	}
	if err := SetJSON(ctx, c, key, result, ttl); err != nil {
		return result, err
	}
	return result, nil
}
