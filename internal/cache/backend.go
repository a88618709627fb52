// Package cache holds the per-event seat availability cache and the stores it
// can sit on.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMiss is returned by Backend.Get when the key is absent or expired.
	ErrMiss = errors.New("cache miss")
	// ErrConflict is returned by Backend.Update when the entry kept changing
	// underneath every attempt.
	ErrConflict = errors.New("cache entry changed concurrently")
)

// UpdateFunc receives the current value of an entry and returns its replacement.
type UpdateFunc func(current []byte) ([]byte, error)

// Backend is a byte store with per-entry expiry.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Update rewrites an existing entry through fn with a fresh ttl as a
	// compare-and-swap. A missing entry is left missing.
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error
	Delete(ctx context.Context, key string) error
}

const maxUpdateRetries = 64
