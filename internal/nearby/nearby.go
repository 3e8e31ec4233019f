// Package nearby builds the map view: directory places around a point merged
// with locally registered, bookable venues and their live status.
package nearby

import (
	"context"
	"fmt"
	"sort"

	"github.com/iliyamo/quickreserve/internal/directory"
	"github.com/iliyamo/quickreserve/internal/model"
)

const (
	SourceDirectory = "2gis"
	SourceLocal     = "local"

	// unknownDistance ranks directory places, which carry no distance,
	// after every local venue.
	unknownDistance = 1e9
)

// Searcher looks up places from the external directory.
type Searcher interface {
	SearchNearby(ctx context.Context, q directory.Query) ([]directory.Place, error)
}

// VenueLister lists the locally registered venues of a city.
type VenueLister interface {
	ListByCity(ctx context.Context, city string, category *model.Category) ([]model.Venue, error)
}

// StatusReader reads live statuses in one batch.
type StatusReader interface {
	GetStatuses(ctx context.Context, ids []string) map[string]model.LiveStatus
}

// Query describes a nearby search.  Category is optional.  FreeNow keeps
// only places whose live status is free.
type Query struct {
	City     string
	Lat      float64
	Lng      float64
	RadiusKm float64
	Category *model.Category
	FreeNow  bool
}

// Item is one entry of the merged result.
type Item struct {
	ExternalID string           `json:"gis_id"`
	VenueID    string           `json:"venue_id,omitempty"`
	Name       string           `json:"name"`
	Address    string           `json:"address,omitempty"`
	Lat        float64          `json:"lat"`
	Lng        float64          `json:"lng"`
	Rating     *float64         `json:"rating,omitempty"`
	Category   model.Category   `json:"category,omitempty"`
	DistanceKm *float64         `json:"distance_km"`
	Bookable   bool             `json:"bookable"`
	LiveStatus model.LiveStatus `json:"live_status"`
	Source     string           `json:"source"`
}

func (it Item) rank() float64 {
	if it.DistanceKm == nil {
		return unknownDistance
	}
	return *it.DistanceKm
}

// Finder merges directory and local results.
type Finder struct {
	dir      Searcher
	venues   VenueLister
	statuses StatusReader
}

func NewFinder(dir Searcher, venues VenueLister, statuses StatusReader) *Finder {
	return &Finder{dir: dir, venues: venues, statuses: statuses}
}

// FindNearby returns local venues within the radius, nearest first, followed
// by directory places in provider order.  A local venue replaces the
// directory place with the same external id.  Directory failures are
// returned to the caller.
func (f *Finder) FindNearby(ctx context.Context, q Query) ([]Item, error) {
	dq := directory.Query{City: q.City, Lat: q.Lat, Lng: q.Lng, RadiusKm: q.RadiusKm}
	if q.Category != nil {
		dq.Category = string(*q.Category)
	}
	places, err := f.dir.SearchNearby(ctx, dq)
	if err != nil {
		return nil, err
	}
	venues, err := f.venues.ListByCity(ctx, q.City, q.Category)
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}

	local := make(map[string]bool, len(venues))
	items := make([]Item, 0, len(places)+len(venues))
	for _, v := range venues {
		d := Haversine(q.Lat, q.Lng, v.Lat, v.Lng)
		if d > q.RadiusKm {
			continue
		}
		d = round3(d)
		local[v.ExternalID] = true
		items = append(items, Item{
			ExternalID: v.ExternalID,
			VenueID:    v.ID,
			Name:       v.Name,
			Lat:        v.Lat,
			Lng:        v.Lng,
			Category:   v.Category,
			DistanceKm: &d,
			Bookable:   true,
			Source:     SourceLocal,
		})
	}
	for _, p := range places {
		if local[p.ExternalID] {
			continue
		}
		items = append(items, Item{
			ExternalID: p.ExternalID,
			Name:       p.Name,
			Address:    p.Address,
			Lat:        p.Lat,
			Lng:        p.Lng,
			Rating:     p.Rating,
			Source:     SourceDirectory,
		})
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ExternalID)
	}
	statuses := f.statuses.GetStatuses(ctx, ids)
	kept := items[:0]
	for _, it := range items {
		st, ok := statuses[it.ExternalID]
		if !ok {
			st = model.LiveOffline
		}
		it.LiveStatus = st
		if q.FreeNow && st != model.LiveFree {
			continue
		}
		kept = append(kept, it)
	}
	items = kept

	sort.SliceStable(items, func(i, j int) bool { return items[i].rank() < items[j].rank() })
	return items, nil
}
