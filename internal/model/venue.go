package model

import (
	"fmt"
	"strings"
	"time"
)

// Category is the kind of service a venue offers.
type Category string

const (
	CategorySTO         Category = "sto"
	CategoryBarbershop  Category = "barbershop"
	CategoryCarwash     Category = "carwash"
	CategoryTireService Category = "tire_service"
)

// ParseCategory validates a category coming from a request.  The empty
// string is rejected; callers that treat the category as optional check for
// it first.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategorySTO, CategoryBarbershop, CategoryCarwash, CategoryTireService:
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Venue is a locally registered business that publishes bookable slots.
// ExternalID is the directory (2GIS) identifier and also keys the venue's
// live status in the cache.
type Venue struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"gis_id"`
	OwnerID    *string   `json:"owner_id,omitempty"`
	Name       string    `json:"name"`
	City       string    `json:"city"`
	Category   Category  `json:"category"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}
