package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/quickreserve/internal/model"
)

// SlotRepo provides data access to the slots table.  Every status change is
// a predicate-guarded UPDATE so that racing callers cannot both win; no
// SELECT ... FOR UPDATE is needed.  All timestamps are UTC.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a new SlotRepo bound to the provided database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

// DB exposes the pool so services can open transactions.
func (r *SlotRepo) DB() *sql.DB { return r.db }

const slotColumns = `id, venue_id, start_time, end_time, status, pending_until`

func scanSlot(row interface{ Scan(...any) error }) (model.Slot, error) {
	var (
		s       model.Slot
		status  string
		pending sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.VenueID, &s.StartTime, &s.EndTime, &status, &pending); err != nil {
		return model.Slot{}, err
	}
	st, err := model.ParseSlotStatus(status)
	if err != nil {
		return model.Slot{}, err
	}
	s.Status = st
	if pending.Valid {
		t := pending.Time.UTC()
		s.PendingUntil = &t
	}
	return s, nil
}

// Create inserts an available slot.  A second slot with the same venue and
// start time violates uq_slots_venue_start and yields ErrConflict.
func (r *SlotRepo) Create(ctx context.Context, s *model.Slot) error {
	const q = `INSERT INTO slots (id, venue_id, start_time, end_time, status) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, s.ID, s.VenueID, s.StartTime.UTC(), s.EndTime.UTC(), string(model.SlotAvailable))
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	s.Status = model.SlotAvailable
	s.PendingUntil = nil
	return nil
}

// GetByID fetches a slot or returns ErrSlotNotFound.
func (r *SlotRepo) GetByID(ctx context.Context, id string) (model.Slot, error) {
	s, err := scanSlot(r.db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Slot{}, ErrSlotNotFound
	}
	return s, err
}

// ListUpcomingByVenue returns the venue's slots starting at or after from
// that are still available or pending, earliest first.
func (r *SlotRepo) ListUpcomingByVenue(ctx context.Context, venueID string, from time.Time) ([]model.Slot, error) {
	const q = `SELECT ` + slotColumns + ` FROM slots
	           WHERE venue_id = ? AND start_time >= ? AND status IN ('available', 'pending')
	           ORDER BY start_time ASC`
	rows, err := r.db.QueryContext(ctx, q, venueID, from.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	slots := []model.Slot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// MarkPendingTx is the single concurrency-control point of a reservation:
// it moves the slot from available to pending and reports whether this
// caller won.  MySQL applies the predicate and the write atomically for the
// row, so of any number of racing callers at most one sees a matched row.
func (r *SlotRepo) MarkPendingTx(ctx context.Context, tx *sql.Tx, id string, until time.Time) (bool, error) {
	const q = `UPDATE slots SET status = 'pending', pending_until = ? WHERE id = ? AND status = 'available'`
	return affectedOne(tx.ExecContext(ctx, q, until.UTC(), id))
}

// ExistsTx reports whether a slot row exists.  It is used after a failed
// MarkPendingTx to tell a conflict from a missing slot.
func (r *SlotRepo) ExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM slots WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// MarkBookedTx moves a pending slot to booked.
func (r *SlotRepo) MarkBookedTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	const q = `UPDATE slots SET status = 'booked', pending_until = NULL WHERE id = ? AND status = 'pending'`
	return affectedOne(tx.ExecContext(ctx, q, id))
}

// ReleaseTx moves a pending slot back to available.
func (r *SlotRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	const q = `UPDATE slots SET status = 'available', pending_until = NULL WHERE id = ? AND status = 'pending'`
	return affectedOne(tx.ExecContext(ctx, q, id))
}

// ReleaseExpiredTx returns every pending slot whose hold ended before now to
// available and reports how many were released.
func (r *SlotRepo) ReleaseExpiredTx(ctx context.Context, tx *sql.Tx, now time.Time) (int64, error) {
	const q = `UPDATE slots SET status = 'available', pending_until = NULL
	           WHERE status = 'pending' AND pending_until < ?`
	res, err := tx.ExecContext(ctx, q, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func affectedOne(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// VenueOfTx returns the venue id and city a slot belongs to.
func (r *SlotRepo) VenueOfTx(ctx context.Context, tx *sql.Tx, slotID string) (venueID, city string, err error) {
	const q = `SELECT v.id, v.city FROM slots s JOIN venues v ON v.id = s.venue_id WHERE s.id = ?`
	err = tx.QueryRowContext(ctx, q, slotID).Scan(&venueID, &city)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrSlotNotFound
	}
	return venueID, city, err
}
