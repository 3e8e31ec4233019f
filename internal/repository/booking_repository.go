package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/quickreserve/internal/model"
)

// BookingRepo provides access to the bookings table.  Writes always happen
// inside a caller-owned transaction together with the matching slot update.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// CreateTx inserts a booking.  ID, SlotID, ClientID, Status and CreatedAt
// must be set by the caller.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (id, slot_id, client_id, status, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, b.ID, b.SlotID, b.ClientID, string(b.Status), b.CreatedAt.UTC())
	return err
}

// ExpireHeldTx marks as expired the pending bookings whose slot hold ended
// before now.  It must run in the same transaction as, and before,
// SlotRepo.ReleaseExpiredTx with the same now, while the slots are still
// pending.
func (r *BookingRepo) ExpireHeldTx(ctx context.Context, tx *sql.Tx, now time.Time) (int64, error) {
	const q = `UPDATE bookings b
	           JOIN slots s ON s.id = b.slot_id
	           SET b.status = 'expired'
	           WHERE b.status = 'pending' AND s.status = 'pending' AND s.pending_until < ?`
	res, err := tx.ExecContext(ctx, q, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetForOwnerTx loads a booking and locks it for a decision by the owner of
// its venue.  It returns ErrBookingNotFound when the booking does not exist
// and ErrForbidden when the venue belongs to someone else.
func (r *BookingRepo) GetForOwnerTx(ctx context.Context, tx *sql.Tx, bookingID, ownerID string) (model.Booking, error) {
	const q = `SELECT b.id, b.slot_id, b.client_id, b.status, b.created_at, b.confirmed_at, v.owner_id
	           FROM bookings b
	           JOIN slots s  ON s.id = b.slot_id
	           JOIN venues v ON v.id = s.venue_id
	           WHERE b.id = ?
	           FOR UPDATE`
	var (
		b         model.Booking
		status    string
		confirmed sql.NullTime
		owner     sql.NullString
	)
	err := tx.QueryRowContext(ctx, q, bookingID).Scan(&b.ID, &b.SlotID, &b.ClientID, &status, &b.CreatedAt, &confirmed, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrBookingNotFound
	}
	if err != nil {
		return model.Booking{}, err
	}
	if !owner.Valid || owner.String != ownerID {
		return model.Booking{}, ErrForbidden
	}
	if b.Status, err = model.ParseBookingStatus(status); err != nil {
		return model.Booking{}, err
	}
	if confirmed.Valid {
		t := confirmed.Time.UTC()
		b.ConfirmedAt = &t
	}
	return b, nil
}

// DecideTx moves a pending booking to confirmed or rejected.  confirmedAt is
// stored only for confirmations.  It reports whether the booking was still
// pending.
func (r *BookingRepo) DecideTx(ctx context.Context, tx *sql.Tx, id string, to model.BookingStatus, at time.Time) (bool, error) {
	var confirmedAt any
	switch to {
	case model.BookingConfirmed:
		confirmedAt = at.UTC()
	case model.BookingRejected:
	case model.BookingPending, model.BookingExpired:
		return false, errors.New("decide: target must be confirmed or rejected")
	default:
		return false, errors.New("decide: unknown booking status")
	}
	const q = `UPDATE bookings SET status = ?, confirmed_at = ? WHERE id = ? AND status = 'pending'`
	return affectedOne(tx.ExecContext(ctx, q, string(to), confirmedAt, id))
}

// ListForOwner returns pending and confirmed bookings on all venues owned by
// ownerID, ordered by slot start.
func (r *BookingRepo) ListForOwner(ctx context.Context, ownerID string) ([]model.OwnerBooking, error) {
	const q = `SELECT b.id, s.id, b.status, s.start_time, s.end_time
	           FROM bookings b
	           JOIN slots s  ON s.id = b.slot_id
	           JOIN venues v ON v.id = s.venue_id
	           WHERE v.owner_id = ? AND b.status IN ('pending', 'confirmed')
	           ORDER BY s.start_time ASC`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []model.OwnerBooking{}
	for rows.Next() {
		var (
			it     model.OwnerBooking
			status string
		)
		if err := rows.Scan(&it.BookingID, &it.SlotID, &status, &it.StartTime, &it.EndTime); err != nil {
			return nil, err
		}
		if it.Status, err = model.ParseBookingStatus(status); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetForClient returns a booking of clientID with its slot and venue.  A
// booking made by another client is reported as ErrBookingNotFound.
func (r *BookingRepo) GetForClient(ctx context.Context, bookingID, clientID string) (model.ClientBooking, error) {
	const q = `SELECT b.id, b.slot_id, b.client_id, b.status, b.created_at, b.confirmed_at,
	                  v.id, v.name, s.start_time, s.end_time, s.pending_until
	           FROM bookings b
	           JOIN slots s  ON s.id = b.slot_id
	           JOIN venues v ON v.id = s.venue_id
	           WHERE b.id = ? AND b.client_id = ?`
	var (
		cb        model.ClientBooking
		status    string
		confirmed sql.NullTime
		until     sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, bookingID, clientID).Scan(&cb.ID, &cb.SlotID, &cb.ClientID, &status,
		&cb.CreatedAt, &confirmed, &cb.VenueID, &cb.VenueName, &cb.StartTime, &cb.EndTime, &until)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ClientBooking{}, ErrBookingNotFound
	}
	if err != nil {
		return model.ClientBooking{}, err
	}
	if cb.Status, err = model.ParseBookingStatus(status); err != nil {
		return model.ClientBooking{}, err
	}
	if confirmed.Valid {
		t := confirmed.Time.UTC()
		cb.ConfirmedAt = &t
	}
	if cb.Status == model.BookingPending && until.Valid {
		t := until.Time.UTC()
		cb.HoldUntil = &t
	}
	return cb, nil
}
