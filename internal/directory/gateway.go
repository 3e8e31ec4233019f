// Package directory is the client of the external "nearby places" provider
// (the 2GIS catalog API).  Results are cached for a short time and outbound
// calls are throttled by a per-minute budget shared by all processes that
// share the cache.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/iliyamo/quickreserve/internal/kvstore"
)

const (
	// DefaultBaseURL is the 2GIS catalog items endpoint.
	DefaultBaseURL = "https://catalog.api.2gis.com/3.0/items"
	// RateLimitKey is the shared per-minute counter for provider calls.
	RateLimitKey = "ratelimit:2gis:minute"

	cacheTTL       = 120 * time.Second
	requestTimeout = 10 * time.Second
	pageSize       = 50
	fields         = "items.point,items.address_name,items.reviews,items.rubrics,items.schedule"
)

// ErrUpstream marks provider failures: transport errors, timeouts, non-2xx
// responses and undecodable bodies.  Self-throttling is not an error.
var ErrUpstream = errors.New("directory: upstream failure")

// Limiter is the subset of ratelimit.FixedWindow the gateway needs.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Place is a provider record normalized to the fields the service uses.
type Place struct {
	ExternalID string   `json:"external_id"`
	Name       string   `json:"name"`
	Address    string   `json:"address,omitempty"`
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	Rating     *float64 `json:"rating,omitempty"`
}

// Query describes one nearby search.  An empty Category searches all.
type Query struct {
	City     string
	Lat      float64
	Lng      float64
	RadiusKm float64
	Category string
}

// CacheKey derives the memoization key: coordinates are rounded to four
// decimals so nearby repeats of the same search share an entry.
func (q Query) CacheKey() string {
	cat := q.Category
	if cat == "" {
		cat = "all"
	}
	return fmt.Sprintf("2gis:nearby:%s:%.4f:%.4f:%s:%s",
		q.City, q.Lat, q.Lng, strconv.FormatFloat(q.RadiusKm, 'f', -1, 64), cat)
}

// Config configures a Gateway.  An empty APIKey disables the provider.
type Config struct {
	APIKey  string
	BaseURL string
}

// Gateway is a cached, rate-limited provider client.
type Gateway struct {
	cfg     Config
	cache   kvstore.Store
	limiter Limiter
	http    *http.Client
}

// NewGateway builds a Gateway.  httpClient may be nil; the default client
// enforces the 10 second request bound.
func NewGateway(cfg Config, cache kvstore.Store, limiter Limiter, httpClient *http.Client) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Gateway{cfg: cfg, cache: cache, limiter: limiter, http: httpClient}
}

// Enabled reports whether a provider key is configured.
func (g *Gateway) Enabled() bool { return g.cfg.APIKey != "" }

// SearchNearby returns normalized places around the query point.  It returns
// an empty list without error when the provider is disabled or the minute
// budget is spent, and an ErrUpstream-wrapped error when the provider fails.
func (g *Gateway) SearchNearby(ctx context.Context, q Query) ([]Place, error) {
	if !g.Enabled() {
		return []Place{}, nil
	}
	ctx, span := otel.Tracer("quickreserve/directory").Start(ctx, "directory.SearchNearby")
	defer span.End()
	span.SetAttributes(
		attribute.String("city", q.City),
		attribute.Float64("radius_km", q.RadiusKm),
		attribute.String("category", q.Category),
	)

	key := q.CacheKey()
	if places, ok := g.cached(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return places, nil
	}

	allowed, err := g.limiter.Allow(ctx, RateLimitKey)
	if err != nil {
		log.Printf("directory: rate limiter unavailable: %v", err)
		return []Place{}, nil
	}
	if !allowed {
		span.SetAttributes(attribute.Bool("throttled", true))
		return []Place{}, nil
	}

	places, err := g.fetch(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream failure")
		return nil, err
	}

	body, err := json.Marshal(places)
	if err == nil {
		err = g.cache.SetEx(ctx, key, string(body), cacheTTL)
	}
	if err != nil {
		log.Printf("directory: cache write %s failed: %v", key, err)
	}
	return places, nil
}

func (g *Gateway) cached(ctx context.Context, key string) ([]Place, bool) {
	raw, err := g.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrMiss) {
			log.Printf("directory: cache read %s failed: %v", key, err)
		}
		return nil, false
	}
	var places []Place
	if err := json.Unmarshal([]byte(raw), &places); err != nil {
		log.Printf("directory: discarding malformed cache entry %s: %v", key, err)
		return nil, false
	}
	if places == nil {
		places = []Place{}
	}
	return places, true
}

type providerResponse struct {
	Result struct {
		Items []providerItem `json:"items"`
	} `json:"result"`
}

type providerItem struct {
	ID          json.RawMessage `json:"id"`
	Name        string          `json:"name"`
	AddressName string          `json:"address_name"`
	Point       *struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	} `json:"point"`
	Reviews *struct {
		GeneralRating *float64 `json:"general_rating"`
	} `json:"reviews"`
}

func (g *Gateway) fetch(ctx context.Context, q Query) ([]Place, error) {
	search := q.Category
	if search == "" {
		search = "service"
	}
	params := url.Values{}
	params.Set("q", search)
	params.Set("city", q.City)
	params.Set("point", strconv.FormatFloat(q.Lng, 'f', -1, 64)+","+strconv.FormatFloat(q.Lat, 'f', -1, 64))
	params.Set("radius", strconv.Itoa(int(q.RadiusKm*1000)))
	params.Set("fields", fields)
	params.Set("key", g.cfg.APIKey)
	params.Set("page_size", strconv.Itoa(pageSize))

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUpstream, resp.StatusCode)
	}

	var body providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	return normalize(body.Result.Items), nil
}

// normalize keeps items with non-zero coordinates.
func normalize(items []providerItem) []Place {
	out := make([]Place, 0, len(items))
	for _, it := range items {
		if it.Point == nil || it.Point.Lat == nil || it.Point.Lon == nil || *it.Point.Lat == 0 || *it.Point.Lon == 0 {
			continue
		}
		name := it.Name
		if name == "" {
			name = "Unknown"
		}
		p := Place{
			ExternalID: rawID(it.ID),
			Name:       name,
			Address:    it.AddressName,
			Lat:        *it.Point.Lat,
			Lng:        *it.Point.Lon,
		}
		if it.Reviews != nil {
			p.Rating = it.Reviews.GeneralRating
		}
		out = append(out, p)
	}
	return out
}

// rawID accepts string or numeric ids.
func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
