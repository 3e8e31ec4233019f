// Package ratelimit implements a fixed-window request counter on top of the
// key-value cache.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/quickreserve/internal/kvstore"
)

// FixedWindow allows up to Limit calls per Window for each key.  The window
// starts with the first call and is enforced by the key's expiry, so bursts
// of up to 2*Limit can straddle a window boundary.
type FixedWindow struct {
	kv     kvstore.Store
	limit  int64
	window time.Duration
}

// NewFixedWindow returns a limiter.  A non-positive limit is treated as 1.
func NewFixedWindow(kv kvstore.Store, limit int, window time.Duration) *FixedWindow {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &FixedWindow{kv: kv, limit: int64(limit), window: window}
}

// Limit returns the per-window budget.
func (l *FixedWindow) Limit() int64 { return l.limit }

// Allow increments the counter for key and reports whether the call fits in
// the current window.  The increment and the window's expiry are applied in
// one cache operation.
func (l *FixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	n, err := l.kv.IncrWithExpiry(ctx, key, l.window)
	if err != nil {
		return false, fmt.Errorf("ratelimit incr %s: %w", key, err)
	}
	return n <= l.limit, nil
}
