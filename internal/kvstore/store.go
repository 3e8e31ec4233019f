// Package kvstore is the key-value cache abstraction used for live statuses,
// directory results and rate-limit counters.  Two interchangeable backends
// exist: Redis and an in-process memory store.  Fallback composes them so
// that an unreachable Redis never fails a caller.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key does not exist.  It is a normal
// outcome and never triggers a fallback.
var ErrMiss = errors.New("kvstore: key not found")

// Store is a string key to string value cache.  Implementations must be safe
// for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	// MGet returns the values of the keys that exist; missing keys are
	// absent from the map.
	MGet(ctx context.Context, keys ...string) (map[string]string, error)
	// IncrWithExpiry increments the counter at key and, in the same atomic
	// step, sets ttl when the counter was just created or has no expiry.
	IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Scan returns every key matching a glob pattern such as "live:status:*".
	Scan(ctx context.Context, pattern string) ([]string, error)
}
