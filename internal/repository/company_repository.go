package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/quickreserve/internal/model"
)

// CompanyRepo stores company profiles.  A profile always belongs to exactly
// one venue and is created together with it.
type CompanyRepo struct {
	db *sql.DB
}

func NewCompanyRepo(db *sql.DB) *CompanyRepo {
	return &CompanyRepo{db: db}
}

// CreateWithVenue inserts the venue and its profile in one transaction.  A
// duplicate gis_id yields ErrConflict and leaves nothing behind.
func (r *CompanyRepo) CreateWithVenue(ctx context.Context, v *model.Venue, p *model.CompanyProfile) error {
	services, err := json.Marshal(nonNil(p.Services))
	if err != nil {
		return fmt.Errorf("encode services: %w", err)
	}
	occupied, err := json.Marshal(nonNil(p.OccupiedSlots))
	if err != nil {
		return fmt.Errorf("encode occupied slots: %w", err)
	}
	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertVenue(ctx, tx, v); err != nil {
			return err
		}
		const q = `INSERT INTO company_profiles
		           (id, venue_id, address, phone, work_start, work_end, slot_duration_minutes, services, occupied_slots, updated_at)
		           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := tx.ExecContext(ctx, q, p.ID, v.ID, p.Address, p.Phone, p.WorkStart, p.WorkEnd,
			p.SlotDurationMinutes, string(services), string(occupied), p.UpdatedAt.UTC())
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	})
}

// SetOccupiedSlots replaces the occupied slot list of the company whose
// venue ownerID owns and returns that venue.  Companies of other owners are
// reported as ErrCompanyNotFound.
func (r *CompanyRepo) SetOccupiedSlots(ctx context.Context, venueID, ownerID string, occupied []string, at time.Time) (model.Venue, error) {
	body, err := json.Marshal(nonNil(occupied))
	if err != nil {
		return model.Venue{}, fmt.Errorf("encode occupied slots: %w", err)
	}
	var v model.Venue
	err = WithTx(ctx, r.db, func(tx *sql.Tx) error {
		const sel = `SELECT v.id, v.gis_id, v.owner_id, v.name, v.city, v.category, v.lat, v.lng, v.is_verified, v.created_at
		             FROM company_profiles p JOIN venues v ON v.id = p.venue_id
		             WHERE p.venue_id = ? AND v.owner_id = ?
		             FOR UPDATE`
		var err error
		v, err = scanVenue(tx.QueryRowContext(ctx, sel, venueID, ownerID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCompanyNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE company_profiles SET occupied_slots = ?, updated_at = ? WHERE venue_id = ?`,
			string(body), at.UTC(), venueID)
		return err
	})
	if err != nil {
		return model.Venue{}, err
	}
	return v, nil
}

// GetByVenue returns the profile of a venue or ErrCompanyNotFound.
func (r *CompanyRepo) GetByVenue(ctx context.Context, venueID string) (model.CompanyProfile, error) {
	const q = `SELECT id, venue_id, address, phone, work_start, work_end, slot_duration_minutes, services, occupied_slots, updated_at
	           FROM company_profiles WHERE venue_id = ?`
	var (
		p                  model.CompanyProfile
		services, occupied []byte
	)
	err := r.db.QueryRowContext(ctx, q, venueID).Scan(&p.ID, &p.VenueID, &p.Address, &p.Phone, &p.WorkStart,
		&p.WorkEnd, &p.SlotDurationMinutes, &services, &occupied, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CompanyProfile{}, ErrCompanyNotFound
	}
	if err != nil {
		return model.CompanyProfile{}, err
	}
	if err := json.Unmarshal(services, &p.Services); err != nil {
		return model.CompanyProfile{}, fmt.Errorf("decode services: %w", err)
	}
	if err := json.Unmarshal(occupied, &p.OccupiedSlots); err != nil {
		return model.CompanyProfile{}, fmt.Errorf("decode occupied slots: %w", err)
	}
	return p, nil
}

// nonNil keeps JSON columns as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
