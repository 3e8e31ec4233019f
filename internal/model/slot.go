package model

import (
	"fmt"
	"time"
)

// SlotStatus is the reservation state of a slot.  Only three values exist:
// available -> pending -> booked, with pending -> available on expiry or
// release.  booked is terminal.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotPending   SlotStatus = "pending"
	SlotBooked    SlotStatus = "booked"
)

// ParseSlotStatus validates a raw status string read from the database or a
// request.
func ParseSlotStatus(s string) (SlotStatus, error) {
	switch SlotStatus(s) {
	case SlotAvailable, SlotPending, SlotBooked:
		return SlotStatus(s), nil
	}
	return "", fmt.Errorf("unknown slot status %q", s)
}

// CanTransition reports whether a slot may move from s to next.
func (s SlotStatus) CanTransition(next SlotStatus) bool {
	switch s {
	case SlotAvailable:
		return next == SlotPending
	case SlotPending:
		return next == SlotBooked || next == SlotAvailable
	case SlotBooked:
		return false
	}
	return false
}

// Slot represents one bookable time interval at a venue.  Exactly one slot
// exists per (venue, start time).
//
// Fields:
//  ID           – primary key (UUID string).
//  VenueID      – venue the slot belongs to.
//  StartTime    – start of the interval (UTC).
//  EndTime      – end of the interval (UTC).
//  Status       – available, pending or booked.
//  PendingUntil – hold expiry while pending; nil otherwise.
type Slot struct {
	ID           string     `json:"id"`
	VenueID      string     `json:"venue_id"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	Status       SlotStatus `json:"status"`
	PendingUntil *time.Time `json:"pending_until,omitempty"`
}
