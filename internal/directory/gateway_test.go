package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iliyamo/quickreserve/internal/kvstore"
	"github.com/iliyamo/quickreserve/internal/ratelimit"
)

const providerBody = `{
  "meta": {"code": 200},
  "result": {
    "items": [
      {"id": "70000001", "name": "Tire Pro", "address_name": "Abaya 1",
       "point": {"lat": 43.21, "lon": 76.91}, "reviews": {"general_rating": 4.6}},
      {"id": "70000002", "name": "", "point": {"lat": 43.22, "lon": 76.92}},
      {"id": "70000003", "name": "No Point"},
      {"id": 70000004, "name": "Zero", "point": {"lat": 0, "lon": 76.9}}
    ]
  }
}`

type provider struct {
	srv   *httptest.Server
	calls atomic.Int32
	last  atomic.Value
}

func newProvider(t *testing.T, status int, body string) *provider {
	t.Helper()
	p := &provider{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.calls.Add(1)
		p.last.Store(r.URL.Query())
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func newGateway(p *provider, cache kvstore.Store, limit int) *Gateway {
	return NewGateway(
		Config{APIKey: "test-key", BaseURL: p.srv.URL},
		cache,
		ratelimit.NewFixedWindow(cache, limit, time.Minute),
		p.srv.Client(),
	)
}

var almaty = Query{City: "almaty", Lat: 43.2, Lng: 76.9, RadiusKm: 5, Category: "tire_service"}

func TestSearchNearbyDisabledWithoutKey(t *testing.T) {
	p := newProvider(t, http.StatusOK, providerBody)
	cache := kvstore.NewMemory()
	g := NewGateway(Config{BaseURL: p.srv.URL}, cache, ratelimit.NewFixedWindow(cache, 60, time.Minute), nil)

	places, err := g.SearchNearby(context.Background(), almaty)
	if err != nil || places == nil || len(places) != 0 {
		t.Fatalf("places = %v, err = %v", places, err)
	}
	if p.calls.Load() != 0 {
		t.Fatal("disabled gateway must not call the provider")
	}
}

func TestSearchNearbyNormalizes(t *testing.T) {
	p := newProvider(t, http.StatusOK, providerBody)
	g := newGateway(p, kvstore.NewMemory(), 60)

	places, err := g.SearchNearby(context.Background(), almaty)
	if err != nil {
		t.Fatal(err)
	}
	if len(places) != 2 {
		t.Fatalf("got %d places, want 2: %+v", len(places), places)
	}
	first := places[0]
	if first.ExternalID != "70000001" || first.Name != "Tire Pro" || first.Address != "Abaya 1" ||
		first.Lat != 43.21 || first.Lng != 76.91 || first.Rating == nil || *first.Rating != 4.6 {
		t.Fatalf("first = %+v", first)
	}
	if places[1].Name != "Unknown" || places[1].Rating != nil {
		t.Fatalf("second = %+v", places[1])
	}

	q := p.last.Load().(url.Values)
	checks := map[string]string{
		"q": "tire_service", "city": "almaty", "point": "76.9,43.2",
		"radius": "5000", "key": "test-key", "page_size": "50",
	}
	for k, want := range checks {
		if got := q[k]; len(got) != 1 || got[0] != want {
			t.Errorf("param %s = %v, want %q", k, got, want)
		}
	}
}

func TestSearchNearbyCacheHitSkipsLimiter(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t, http.StatusOK, providerBody)
	cache := kvstore.NewMemory()
	g := newGateway(p, cache, 60)

	if _, err := g.SearchNearby(ctx, almaty); err != nil {
		t.Fatal(err)
	}
	again := almaty
	again.Lat = 43.20000004 // same after rounding to 4 decimals
	for i := 0; i < 5; i++ {
		places, err := g.SearchNearby(ctx, again)
		if err != nil || len(places) != 2 {
			t.Fatalf("cached search = %v, %v", places, err)
		}
	}
	if p.calls.Load() != 1 {
		t.Fatalf("provider calls = %d, want 1", p.calls.Load())
	}
	if n, _ := cache.Get(ctx, RateLimitKey); n != "1" {
		t.Fatalf("rate counter = %q, want 1", n)
	}
}

func TestSearchNearbyThrottled(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t, http.StatusOK, providerBody)
	cache := kvstore.NewMemory()
	g := newGateway(p, cache, 60)

	for i := 0; i < 60; i++ {
		q := almaty
		q.RadiusKm = float64(i + 1)
		if _, err := g.SearchNearby(ctx, q); err != nil {
			t.Fatal(err)
		}
	}
	q := almaty
	q.RadiusKm = 99
	places, err := g.SearchNearby(ctx, q)
	if err != nil || len(places) != 0 {
		t.Fatalf("61st call = %v, %v; want empty, nil", places, err)
	}
	if p.calls.Load() != 60 {
		t.Fatalf("provider calls = %d, want 60", p.calls.Load())
	}
}

func TestSearchNearbyUpstreamErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		p := newProvider(t, http.StatusBadGateway, `oops`)
		cache := kvstore.NewMemory()
		g := newGateway(p, cache, 60)
		_, err := g.SearchNearby(context.Background(), almaty)
		if !errors.Is(err, ErrUpstream) {
			t.Fatalf("err = %v, want ErrUpstream", err)
		}
		if _, err := cache.Get(context.Background(), almaty.CacheKey()); !errors.Is(err, kvstore.ErrMiss) {
			t.Fatal("failures must not be cached")
		}
	})
	t.Run("body", func(t *testing.T) {
		p := newProvider(t, http.StatusOK, `{"result":`)
		g := newGateway(p, kvstore.NewMemory(), 60)
		if _, err := g.SearchNearby(context.Background(), almaty); !errors.Is(err, ErrUpstream) {
			t.Fatalf("err = %v, want ErrUpstream", err)
		}
	})
	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()
		cache := kvstore.NewMemory()
		g := NewGateway(Config{APIKey: "k", BaseURL: srv.URL}, cache,
			ratelimit.NewFixedWindow(cache, 60, time.Minute), &http.Client{Timeout: 50 * time.Millisecond})
		places, err := g.SearchNearby(context.Background(), almaty)
		if !errors.Is(err, ErrUpstream) || places != nil {
			t.Fatalf("timeout must be a failure, got %v, %v", places, err)
		}
	})
}

func TestCacheKey(t *testing.T) {
	q := Query{City: "almaty", Lat: 43.238949, Lng: 76.889709, RadiusKm: 2.5}
	if got, want := q.CacheKey(), "2gis:nearby:almaty:43.2389:76.8897:2.5:all"; got != want {
		t.Fatalf("CacheKey = %q, want %q", got, want)
	}
}
