package kvstore

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"
)

// Fallback tries the primary store on every call and, when it fails with
// anything other than ErrMiss, answers from the local store instead.  State
// written to the local store during an outage is not copied back; live
// statuses and rate-limit counters silently reset while degraded.
type Fallback struct {
	primary  Store
	local    Store
	degraded atomic.Bool
}

// NewFallback composes primary and local.  A nil primary means the remote
// cache is not configured and every call goes to local.
func NewFallback(primary, local Store) *Fallback {
	return &Fallback{primary: primary, local: local}
}

// Degraded reports whether the last primary call failed.
func (f *Fallback) Degraded() bool { return f.degraded.Load() }

func call[T any](ctx context.Context, f *Fallback, op string, fn func(Store) (T, error)) (T, error) {
	if f.primary != nil {
		v, err := fn(f.primary)
		if err == nil || errors.Is(err, ErrMiss) {
			if f.degraded.CompareAndSwap(true, false) {
				log.Printf("kvstore: remote cache recovered")
			}
			return v, err
		}
		if ctx.Err() == nil && f.degraded.CompareAndSwap(false, true) {
			log.Printf("kvstore: remote cache unavailable on %s, using local store: %v", op, err)
		}
	}
	return fn(f.local)
}

func (f *Fallback) Get(ctx context.Context, key string) (string, error) {
	return call(ctx, f, "get", func(s Store) (string, error) { return s.Get(ctx, key) })
}

func (f *Fallback) Set(ctx context.Context, key, value string) error {
	_, err := call(ctx, f, "set", func(s Store) (struct{}, error) { return struct{}{}, s.Set(ctx, key, value) })
	return err
}

func (f *Fallback) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := call(ctx, f, "setex", func(s Store) (struct{}, error) { return struct{}{}, s.SetEx(ctx, key, value, ttl) })
	return err
}

func (f *Fallback) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	return call(ctx, f, "mget", func(s Store) (map[string]string, error) { return s.MGet(ctx, keys...) })
}

func (f *Fallback) IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return call(ctx, f, "incr", func(s Store) (int64, error) { return s.IncrWithExpiry(ctx, key, ttl) })
}

func (f *Fallback) Scan(ctx context.Context, pattern string) ([]string, error) {
	return call(ctx, f, "scan", func(s Store) ([]string, error) { return s.Scan(ctx, pattern) })
}
