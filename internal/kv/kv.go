// Package kv defines the keyed store with TTL semantics that backs captcha
// records and admission sessions. Expiry is first-class: a key past its TTL is
// absent, whether the backend evicts natively (redis) or lazily on read.
package kv

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("kv: key not found")

type Store interface {
	// Set writes value under key. ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the value or ErrNotFound when the key is absent or expired.
	Get(ctx context.Context, key string) (string, error)
	// Incr increments the integer value under key, creating it at 1.
	// An existing TTL is preserved.
	Incr(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, keys ...string) error
}
