package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/quickreserve/internal/model"
)

// VenueRepo encapsulates all database queries related to venues.  A venue
// is identified internally by its UUID and externally by its directory id
// (gis_id), which is unique.
type VenueRepo struct {
	db *sql.DB
}

// NewVenueRepo constructs a VenueRepo with the provided DB handle.
func NewVenueRepo(db *sql.DB) *VenueRepo {
	return &VenueRepo{db: db}
}

const venueColumns = `id, gis_id, owner_id, name, city, category, lat, lng, is_verified, created_at`

func scanVenue(row interface{ Scan(...any) error }) (model.Venue, error) {
	var (
		v        model.Venue
		owner    sql.NullString
		category string
	)
	if err := row.Scan(&v.ID, &v.ExternalID, &owner, &v.Name, &v.City, &category, &v.Lat, &v.Lng, &v.IsVerified, &v.CreatedAt); err != nil {
		return model.Venue{}, err
	}
	c, err := model.ParseCategory(category)
	if err != nil {
		return model.Venue{}, err
	}
	v.Category = c
	if owner.Valid {
		o := owner.String
		v.OwnerID = &o
	}
	return v, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertVenue(ctx context.Context, ex execer, v *model.Venue) error {
	const q = `INSERT INTO venues (id, gis_id, owner_id, name, city, category, lat, lng, is_verified, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var owner any
	if v.OwnerID != nil {
		owner = *v.OwnerID
	}
	_, err := ex.ExecContext(ctx, q, v.ID, v.ExternalID, owner, v.Name, v.City, string(v.Category),
		v.Lat, v.Lng, v.IsVerified, v.CreatedAt.UTC())
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// Create inserts a venue.  A duplicate gis_id yields ErrConflict.
func (r *VenueRepo) Create(ctx context.Context, v *model.Venue) error {
	return insertVenue(ctx, r.db, v)
}

// GetByID fetches a venue or returns ErrVenueNotFound.
func (r *VenueRepo) GetByID(ctx context.Context, id string) (model.Venue, error) {
	v, err := scanVenue(r.db.QueryRowContext(ctx, `SELECT `+venueColumns+` FROM venues WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Venue{}, ErrVenueNotFound
	}
	return v, err
}

// GetByExternalIDAndOwner fetches a venue by gis_id only if ownerID owns it.
// Venues owned by someone else are reported as not found.
func (r *VenueRepo) GetByExternalIDAndOwner(ctx context.Context, externalID, ownerID string) (model.Venue, error) {
	const q = `SELECT ` + venueColumns + ` FROM venues WHERE gis_id = ? AND owner_id = ?`
	v, err := scanVenue(r.db.QueryRowContext(ctx, q, externalID, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Venue{}, ErrVenueNotFound
	}
	return v, err
}

// ListByCity returns the venues of a city, optionally restricted to one
// category.  Distance filtering happens in the caller.
func (r *VenueRepo) ListByCity(ctx context.Context, city string, category *model.Category) ([]model.Venue, error) {
	q := `SELECT ` + venueColumns + ` FROM venues WHERE city = ?`
	args := []any{city}
	if category != nil {
		q += ` AND category = ?`
		args = append(args, string(*category))
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	venues := []model.Venue{}
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}
