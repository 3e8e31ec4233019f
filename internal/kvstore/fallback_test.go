package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errDown = errors.New("dial tcp: connection refused")

// brokenStore fails every call as an unreachable Redis would.
type brokenStore struct{ calls int }

func (b *brokenStore) Get(context.Context, string) (string, error) { b.calls++; return "", errDown }
func (b *brokenStore) Set(context.Context, string, string) error   { b.calls++; return errDown }
func (b *brokenStore) SetEx(context.Context, string, string, time.Duration) error {
	b.calls++
	return errDown
}
func (b *brokenStore) MGet(context.Context, ...string) (map[string]string, error) {
	b.calls++
	return nil, errDown
}
func (b *brokenStore) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	b.calls++
	return 0, errDown
}
func (b *brokenStore) Scan(context.Context, string) ([]string, error) { b.calls++; return nil, errDown }

func TestFallbackUsesLocalWhenPrimaryDown(t *testing.T) {
	ctx := context.Background()
	primary := &brokenStore{}
	local := NewMemory()
	f := NewFallback(primary, local)

	if err := f.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set should not surface cache errors: %v", err)
	}
	if v, err := f.Get(ctx, "k"); err != nil || v != "v" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	if n, err := f.IncrWithExpiry(ctx, "ctr", time.Minute); err != nil || n != 1 {
		t.Fatalf("IncrWithExpiry = %d, %v", n, err)
	}
	if !f.Degraded() {
		t.Fatal("Fallback should report degraded")
	}
	if primary.calls != 3 {
		t.Fatalf("primary should be tried on every call, got %d", primary.calls)
	}
}

func TestFallbackMissDoesNotDegrade(t *testing.T) {
	ctx := context.Background()
	primary := NewMemory()
	local := NewMemory()
	_ = local.Set(ctx, "k", "stale-local")
	f := NewFallback(primary, local)

	if _, err := f.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("a primary miss must be returned as-is, err = %v", err)
	}
	if f.Degraded() {
		t.Fatal("a miss is not an outage")
	}
}

func TestFallbackRecovers(t *testing.T) {
	ctx := context.Background()
	f := NewFallback(&brokenStore{}, NewMemory())
	_, _ = f.Get(ctx, "x")
	if !f.Degraded() {
		t.Fatal("expected degraded")
	}
	f.primary = NewMemory()
	_, _ = f.Get(ctx, "x")
	if f.Degraded() {
		t.Fatal("expected recovery after a successful primary call")
	}
}

func TestFallbackNilPrimary(t *testing.T) {
	ctx := context.Background()
	f := NewFallback(nil, NewMemory())
	if err := f.SetEx(ctx, "k", "v", time.Minute); err != nil {
		t.Fatal(err)
	}
	got, err := f.MGet(ctx, "k", "z")
	if err != nil || got["k"] != "v" || len(got) != 1 {
		t.Fatalf("MGet = %v, %v", got, err)
	}
}
