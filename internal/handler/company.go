package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/quickreserve/internal/middleware"
	"github.com/iliyamo/quickreserve/internal/model"
	"github.com/iliyamo/quickreserve/internal/notify"
)

const (
	defaultCompanyLat      = 43.238949
	defaultCompanyLng      = 76.889709
	defaultSlotMinutes     = 60
	minSlotMinutes         = 15
	maxSlotMinutes         = 180
	manualExternalIDPrefix = "manual-"
)

type CompanyStore interface {
	CreateWithVenue(ctx context.Context, v *model.Venue, p *model.CompanyProfile) error
	SetOccupiedSlots(ctx context.Context, venueID, ownerID string, occupied []string, at time.Time) (model.Venue, error)
	GetByVenue(ctx context.Context, venueID string) (model.CompanyProfile, error)
}

// CompanyHandler serves venues registered through the company form.  Such
// venues have no directory entry, so they get a generated "manual-" id.
type CompanyHandler struct {
	Companies CompanyStore
	Statuses  StatusWriter
	Notifier  notify.Publisher

	newID func() string
	now   func() time.Time
}

func NewCompanyHandler(companies CompanyStore, statuses StatusWriter, notifier notify.Publisher) *CompanyHandler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &CompanyHandler{
		Companies: companies,
		Statuses:  statuses,
		Notifier:  notifier,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

type createCompanyReq struct {
	Name                string              `json:"name"`
	Category            string              `json:"category"`
	Address             string              `json:"address"`
	Phone               string              `json:"phone"`
	WorkStart           string              `json:"work_start"`
	WorkEnd             string              `json:"work_end"`
	SlotDurationMinutes *int                `json:"slot_duration_minutes"`
	Services            []model.ServiceItem `json:"services"`
	City                string              `json:"city"`
	Lat                 *float64            `json:"lat"`
	Lng                 *float64            `json:"lng"`
}

// validate normalizes the request in place and returns a client-facing
// message for the first problem found.
func (r *createCompanyReq) validate() string {
	r.Name = strings.TrimSpace(r.Name)
	r.Address = strings.TrimSpace(r.Address)
	r.Phone = strings.TrimSpace(r.Phone)
	r.City = strings.ToLower(strings.TrimSpace(r.City))
	if r.City == "" {
		r.City = defaultCity
	}
	if r.Lat == nil {
		lat := defaultCompanyLat
		r.Lat = &lat
	}
	if r.Lng == nil {
		lng := defaultCompanyLng
		r.Lng = &lng
	}
	if r.SlotDurationMinutes == nil {
		d := defaultSlotMinutes
		r.SlotDurationMinutes = &d
	}

	switch {
	case r.Name == "" || len(r.Name) > 255:
		return "name must be 1 to 255 characters"
	case r.Address == "" || len(r.Address) > 255:
		return "address must be 1 to 255 characters"
	case len(r.Phone) < 5 || len(r.Phone) > 64:
		return "phone must be 5 to 64 characters"
	case *r.Lat < -90 || *r.Lat > 90 || *r.Lng < -180 || *r.Lng > 180:
		return "invalid coordinates"
	case *r.SlotDurationMinutes < minSlotMinutes || *r.SlotDurationMinutes > maxSlotMinutes:
		return "slot_duration_minutes must be between 15 and 180"
	}
	start, errStart := time.Parse("15:04", r.WorkStart)
	end, errEnd := time.Parse("15:04", r.WorkEnd)
	if errStart != nil || errEnd != nil || len(r.WorkStart) != 5 || len(r.WorkEnd) != 5 {
		return "work_start and work_end must be HH:MM"
	}
	if !end.After(start) {
		return "work_end must be after work_start"
	}
	for i := range r.Services {
		r.Services[i].Name = strings.TrimSpace(r.Services[i].Name)
		if n := len(r.Services[i].Name); n == 0 || n > 100 {
			return "service names must be 1 to 100 characters"
		}
		if r.Services[i].Price < 0 {
			return "service prices must not be negative"
		}
	}
	return ""
}

// Create handles POST /v1/business/companies.  The venue and its profile are
// stored together, the venue starts free, and the city is told about it.
func (h *CompanyHandler) Create(c echo.Context) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createCompanyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	category, err := model.ParseCategory(req.Category)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category"})
	}

	now := h.now().UTC()
	v := model.Venue{
		ID:         h.newID(),
		ExternalID: manualExternalIDPrefix + h.newID(),
		OwnerID:    &ownerID,
		Name:       req.Name,
		City:       req.City,
		Category:   category,
		Lat:        *req.Lat,
		Lng:        *req.Lng,
		CreatedAt:  now,
	}
	p := model.CompanyProfile{
		ID:                  h.newID(),
		VenueID:             v.ID,
		Address:             req.Address,
		Phone:               req.Phone,
		WorkStart:           req.WorkStart,
		WorkEnd:             req.WorkEnd,
		SlotDurationMinutes: *req.SlotDurationMinutes,
		Services:            req.Services,
		OccupiedSlots:       []string{},
		UpdatedAt:           now,
	}
	if p.Services == nil {
		p.Services = []model.ServiceItem{}
	}

	ctx := c.Request().Context()
	if err := h.Companies.CreateWithVenue(ctx, &v, &p); err != nil {
		return respondError(c, err)
	}
	if err := h.Statuses.SetStatus(ctx, v.ExternalID, model.LiveFree, v.City); err != nil {
		log.Printf("company: initial status for %s: %v", v.ExternalID, err)
	}
	h.Notifier.Publish(notify.NewPlaceAdded, v.City, echo.Map{
		"venue_id": v.ID,
		"gis_id":   v.ExternalID,
		"name":     v.Name,
		"category": v.Category,
		"lat":      v.Lat,
		"lng":      v.Lng,
	})
	return c.JSON(http.StatusCreated, echo.Map{"id": v.ID, "gis_id": v.ExternalID, "status": "success"})
}

type occupiedReq struct {
	OccupiedSlots []string `json:"occupied_slots"`
}

// SetOccupied handles PATCH /v1/business/companies/:id.  The venue turns
// busy while any slot is listed as occupied and free otherwise.
func (h *CompanyHandler) SetOccupied(c echo.Context) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := strings.TrimSpace(c.Param("id"))
	if _, err := uuid.Parse(id); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid company id"})
	}
	var req occupiedReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx := c.Request().Context()
	v, err := h.Companies.SetOccupiedSlots(ctx, id, ownerID, req.OccupiedSlots, h.now())
	if err != nil {
		return respondError(c, err)
	}
	status := model.StatusForOccupied(req.OccupiedSlots)
	if err := h.Statuses.SetStatus(ctx, v.ExternalID, status, v.City); err != nil {
		log.Printf("company: status for %s: %v", v.ExternalID, err)
	}
	h.Notifier.Publish(notify.LiveStatusChanged, v.City, echo.Map{"gis_id": v.ExternalID, "status": status})
	return c.JSON(http.StatusOK, echo.Map{"id": v.ID, "status": "success", "live_status": status})
}

// Profile handles GET /v1/client/companies/:id.
func (h *CompanyHandler) Profile(c echo.Context) error {
	p, err := h.Companies.GetByVenue(c.Request().Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
