// Package store provides the shared key-value store behind rate-limit
// counters and usage metrics. Counters must be updated atomically because
// many workers share one provider quota.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Store is an expiring key-value store with atomic counters.
// A ttl of zero means the key never expires. Expiry is only set when a key
// is created (or recreated after expiring); later writes keep it.
type Store interface {
	// IncrBy atomically adds delta to the counter at key and returns the new value.
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
	// Counter returns the counter at key, or 0 if absent or expired.
	Counter(ctx context.Context, key string) (int64, error)
	// TTL returns the remaining lifetime of key, or 0 if absent, expired or persistent.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Get returns the blob at key. The bool is false if absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores a blob, resetting its expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Update atomically replaces the blob at key with fn(old). old is nil if absent.
	Update(ctx context.Context, key string, ttl time.Duration, fn func(old []byte) ([]byte, error)) error

	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

func expiry(now time.Time, ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return now.Add(ttl).UnixNano()
}
