// Package service holds the write paths that span several tables: the
// reservation protocol, the owner's decision on a booking and the sweep
// that reclaims expired holds.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/quickreserve/internal/model"
	"github.com/iliyamo/quickreserve/internal/notify"
	"github.com/iliyamo/quickreserve/internal/repository"
)

const (
	// HoldDuration is how long a reserved slot stays pending awaiting the
	// owner's decision.
	HoldDuration = 5 * time.Minute
	// PendingForSeconds is reported to the client on a successful reserve.
	PendingForSeconds = 300
)

// ReservationService coordinates slots and bookings.  All state changes go
// through predicate-guarded updates in MySQL; the cache is never consulted.
type ReservationService struct {
	db       *sql.DB
	slots    *repository.SlotRepo
	bookings *repository.BookingRepo
	notifier notify.Publisher
	now      func() time.Time
	newID    func() string
}

// NewReservationService wires the service.  A nil notifier disables events.
func NewReservationService(db *sql.DB, slots *repository.SlotRepo, bookings *repository.BookingRepo, notifier notify.Publisher) *ReservationService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &ReservationService{
		db:       db,
		slots:    slots,
		bookings: bookings,
		notifier: notifier,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Reserve claims an available slot for clientID.  It returns
// repository.ErrSlotNotFound when the slot does not exist and
// repository.ErrConflict when it exists but is not available.  Of any number
// of concurrent calls on the same slot at most one succeeds.
func (s *ReservationService) Reserve(ctx context.Context, slotID, clientID string) (model.Booking, error) {
	now := s.now().UTC()
	b := model.Booking{
		ID:        s.newID(),
		SlotID:    slotID,
		ClientID:  clientID,
		Status:    model.BookingPending,
		CreatedAt: now,
	}
	var venueID, city string
	err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		won, err := s.slots.MarkPendingTx(ctx, tx, slotID, now.Add(HoldDuration))
		if err != nil {
			return fmt.Errorf("mark slot pending: %w", err)
		}
		if !won {
			exists, err := s.slots.ExistsTx(ctx, tx, slotID)
			if err != nil {
				return fmt.Errorf("probe slot: %w", err)
			}
			if !exists {
				return repository.ErrSlotNotFound
			}
			return repository.ErrConflict
		}
		if err := s.bookings.CreateTx(ctx, tx, &b); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		venueID, city, err = s.slots.VenueOfTx(ctx, tx, slotID)
		if err != nil {
			return fmt.Errorf("slot venue: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	s.notifier.Publish(notify.BookingCreated, city, map[string]any{
		"booking_id": b.ID,
		"slot_id":    b.SlotID,
		"venue_id":   venueID,
	})
	return b, nil
}

// ReleaseExpired expires the bookings of lapsed holds and returns their slots
// to available, in one transaction with a single cut-off time.  It reports
// the number of slots released.  Running it again, or concurrently, is safe.
func (s *ReservationService) ReleaseExpired(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	var released int64
	err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		expired, err := s.bookings.ExpireHeldTx(ctx, tx, now)
		if err != nil {
			return fmt.Errorf("expire bookings: %w", err)
		}
		released, err = s.slots.ReleaseExpiredTx(ctx, tx, now)
		if err != nil {
			return fmt.Errorf("release slots: %w", err)
		}
		if expired != released {
			log.Printf("reclaimer: %d bookings expired for %d released slots", expired, released)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

// Confirm accepts a pending booking on one of ownerID's venues and books its
// slot.
func (s *ReservationService) Confirm(ctx context.Context, bookingID, ownerID string) (model.Booking, error) {
	return s.decide(ctx, bookingID, ownerID, model.BookingConfirmed)
}

// Reject declines a pending booking and makes its slot available again.
func (s *ReservationService) Reject(ctx context.Context, bookingID, ownerID string) (model.Booking, error) {
	return s.decide(ctx, bookingID, ownerID, model.BookingRejected)
}

func (s *ReservationService) decide(ctx context.Context, bookingID, ownerID string, to model.BookingStatus) (model.Booking, error) {
	now := s.now().UTC()
	var b model.Booking
	err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		b, err = s.bookings.GetForOwnerTx(ctx, tx, bookingID, ownerID)
		if err != nil {
			return err
		}
		if b.Status != model.BookingPending {
			return repository.ErrConflict
		}
		ok, err := s.bookings.DecideTx(ctx, tx, bookingID, to, now)
		if err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		if !ok {
			return repository.ErrConflict
		}
		if to == model.BookingConfirmed {
			ok, err = s.slots.MarkBookedTx(ctx, tx, b.SlotID)
		} else {
			ok, err = s.slots.ReleaseTx(ctx, tx, b.SlotID)
		}
		if err != nil {
			return fmt.Errorf("update slot: %w", err)
		}
		if !ok {
			return repository.ErrConflict
		}
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = to
	if to == model.BookingConfirmed {
		b.ConfirmedAt = &now
	}
	return b, nil
}
