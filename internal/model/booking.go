package model

import (
	"fmt"
	"time"
)

// BookingStatus is the lifecycle state of a client's claim on a slot.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingRejected  BookingStatus = "rejected"
	BookingExpired   BookingStatus = "expired"
)

// ParseBookingStatus validates a raw booking status.
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch BookingStatus(s) {
	case BookingPending, BookingConfirmed, BookingRejected, BookingExpired:
		return BookingStatus(s), nil
	}
	return "", fmt.Errorf("unknown booking status %q", s)
}

// Terminal reports whether no further transition is possible.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingConfirmed, BookingRejected, BookingExpired:
		return true
	case BookingPending:
		return false
	}
	return false
}

// Booking records a client's claim on a slot.  It is created in the same
// transaction that moves the slot to pending.
type Booking struct {
	ID          string        `json:"booking_id"`
	SlotID      string        `json:"slot_id"`
	ClientID    string        `json:"client_id"`
	Status      BookingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ConfirmedAt *time.Time    `json:"confirmed_at,omitempty"`
}

// OwnerBooking is a booking joined with its slot times, as listed to the
// venue owner.
type OwnerBooking struct {
	BookingID string        `json:"booking_id"`
	SlotID    string        `json:"slot_id"`
	Status    BookingStatus `json:"status"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
}

// ClientBooking is a booking as shown to the client who made it.  HoldUntil
// is set only while the booking is pending.
type ClientBooking struct {
	Booking
	VenueID   string     `json:"venue_id"`
	VenueName string     `json:"venue_name"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	HoldUntil *time.Time `json:"hold_until,omitempty"`
}
