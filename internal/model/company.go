package model

import "time"

// ServiceItem is one priced service a company lists on its profile.
type ServiceItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// CompanyProfile carries the storefront details of a venue that was
// registered through the company form rather than from the directory.
// OccupiedSlots holds the owner's labels for the slots currently taken
// (for example "14:00"); a non-empty list shows the venue as busy.
type CompanyProfile struct {
	ID                  string        `json:"id"`
	VenueID             string        `json:"venue_id"`
	Address             string        `json:"address"`
	Phone               string        `json:"phone"`
	WorkStart           string        `json:"work_start"`
	WorkEnd             string        `json:"work_end"`
	SlotDurationMinutes int           `json:"slot_duration_minutes"`
	Services            []ServiceItem `json:"services"`
	OccupiedSlots       []string      `json:"occupied_slots"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// StatusForOccupied derives the live status from the occupied slot list.
func StatusForOccupied(occupied []string) LiveStatus {
	if len(occupied) > 0 {
		return LiveBusy
	}
	return LiveFree
}
