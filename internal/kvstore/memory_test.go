package kvstore

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMemory() (*Memory, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMemory()
	m.now = clk.Now
	return m, clk
}

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory()

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get(missing) err = %v, want ErrMiss", err)
	}
	if err := m.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	if v, err := m.Get(ctx, "k"); err != nil || v != "v" {
		t.Fatalf("Get = %q, %v", v, err)
	}
}

func TestMemorySetExExpires(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestMemory()

	_ = m.SetEx(ctx, "k", "v", 120*time.Second)
	clk.Advance(119 * time.Second)
	if _, err := m.Get(ctx, "k"); err != nil {
		t.Fatalf("value expired early: %v", err)
	}
	clk.Advance(time.Second)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("value should have expired, err = %v", err)
	}
}

func TestMemorySetClearsExpiry(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestMemory()

	_ = m.SetEx(ctx, "k", "old", time.Second)
	_ = m.Set(ctx, "k", "new")
	clk.Advance(time.Hour)
	if v, err := m.Get(ctx, "k"); err != nil || v != "new" {
		t.Fatalf("Get = %q, %v", v, err)
	}
}

func TestMemoryIncrWithExpiry(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestMemory()

	for want := int64(1); want <= 3; want++ {
		n, err := m.IncrWithExpiry(ctx, "ctr", 60*time.Second)
		if err != nil || n != want {
			t.Fatalf("IncrWithExpiry = %d, %v; want %d", n, err, want)
		}
		clk.Advance(10 * time.Second)
	}
	// 60s after the first increment; later increments kept the original expiry.
	clk.Advance(30 * time.Second)
	if n, _ := m.IncrWithExpiry(ctx, "ctr", 60*time.Second); n != 1 {
		t.Fatalf("counter should restart after expiry, got %d", n)
	}
}

func TestMemoryIncrWithExpiryRepairsPersistentKey(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestMemory()

	_ = m.Set(ctx, "ctr", "61")
	if n, _ := m.IncrWithExpiry(ctx, "ctr", time.Minute); n != 62 {
		t.Fatalf("n = %d", n)
	}
	clk.Advance(time.Minute)
	if n, _ := m.IncrWithExpiry(ctx, "ctr", time.Minute); n != 1 {
		t.Fatalf("a counter without expiry must get one, got %d", n)
	}
}

func TestMemoryMGetAndScan(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestMemory()

	_ = m.Set(ctx, "live:status:a", "1")
	_ = m.Set(ctx, "live:status:b", "2")
	_ = m.SetEx(ctx, "live:status:c", "3", time.Second)
	_ = m.Set(ctx, "other:a", "x")
	clk.Advance(2 * time.Second)

	got, err := m.MGet(ctx, "live:status:a", "live:status:c", "missing")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got["live:status:a"] != "1" {
		t.Fatalf("MGet = %v", got)
	}

	keys, err := m.Scan(ctx, "live:status:*")
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "live:status:a" || keys[1] != "live:status:b" {
		t.Fatalf("Scan = %v", keys)
	}
}

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern, s string
		want       bool
	}{
		{"live:status:*", "live:status:abc", true},
		{"live:status:*", "live:status:70000001/branch", true},
		{"live:status:*", "live:status:", true},
		{"live:status:*", "other:abc", false},
		{"a?c", "abc", true},
		{"a?c", "ac", false},
		{"h[ae]llo", "hello", true},
		{"h[^e]llo", "hello", false},
		{"h[a-c]llo", "hbllo", true},
		{`a\*b`, "a*b", true},
		{`a\*b`, "axb", false},
		{"*:*", "x:y/z", true},
		{"exact", "exact", true},
		{"exact", "exactly", false},
	}
	for _, tt := range tests {
		if got := globMatch(tt.pattern, tt.s); got != tt.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", tt.pattern, tt.s, got, tt.want)
		}
	}
}

func TestMemoryScanKeysWithSlash(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory()
	_ = m.Set(ctx, "live:status:70000001/branch-2", "1")

	keys, err := m.Scan(ctx, "live:status:*")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 {
		t.Fatalf("Scan = %v, want the slash key", keys)
	}
}
