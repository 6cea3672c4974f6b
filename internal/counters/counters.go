// Package counters provides the shared atomic counter store used by the
// rate limiter and the usage tracker. Increments are single atomic
// operations, never read-then-write, so they stay correct across any
// number of collector instances.
package counters

import (
	"context"
	"time"
)

// Store is the counter store contract. Missing keys read as zero.
type Store interface {
	// Increment atomically adds one to key and returns the new value.
	Increment(ctx context.Context, key string) (int64, error)

	// IncrementBy atomically adds amount to key and returns the new value.
	IncrementBy(ctx context.Context, key string, amount int64) (int64, error)

	// SetExpiration sets the absolute expiration instant for key.
	SetExpiration(ctx context.Context, key string, at time.Time) error

	// GetInt64 returns the counter value for key, or zero if absent.
	GetInt64(ctx context.Context, key string) (int64, error)

	// Set stores value under key with the given TTL. A zero TTL means
	// no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Get returns the value for key, or empty string if absent.
	Get(ctx context.Context, key string) (string, error)

	Close() error
}
