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

// VenueStore is the subset of repository.VenueRepo used by the handlers.
type VenueStore interface {
	Create(ctx context.Context, v *model.Venue) error
	GetByID(ctx context.Context, id string) (model.Venue, error)
	GetByExternalIDAndOwner(ctx context.Context, externalID, ownerID string) (model.Venue, error)
}

type SlotCreator interface {
	Create(ctx context.Context, s *model.Slot) error
}

type OwnerBookings interface {
	ListForOwner(ctx context.Context, ownerID string) ([]model.OwnerBooking, error)
}

// Decider confirms or rejects pending bookings; see service.ReservationService.
type Decider interface {
	Confirm(ctx context.Context, bookingID, ownerID string) (model.Booking, error)
	Reject(ctx context.Context, bookingID, ownerID string) (model.Booking, error)
}

type StatusWriter interface {
	SetStatus(ctx context.Context, externalID string, status model.LiveStatus, city string) error
}

// BusinessHandler serves venue owners.  All routes run behind JWTAuth and
// RequireRole(business).
type BusinessHandler struct {
	Venues   VenueStore
	Slots    SlotCreator
	Bookings OwnerBookings
	Decider  Decider
	Statuses StatusWriter
	Notifier notify.Publisher

	newID func() string
}

func NewBusinessHandler(venues VenueStore, slots SlotCreator, bookings OwnerBookings, decider Decider, statuses StatusWriter, notifier notify.Publisher) *BusinessHandler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &BusinessHandler{
		Venues:   venues,
		Slots:    slots,
		Bookings: bookings,
		Decider:  decider,
		Statuses: statuses,
		Notifier: notifier,
		newID:    uuid.NewString,
	}
}

type registerVenueReq struct {
	GisID    string  `json:"gis_id"`
	Name     string  `json:"name"`
	City     string  `json:"city"`
	Category string  `json:"category"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// RegisterVenue handles POST /v1/business/register.  The new venue starts
// with live status free and the city is told about it.
func (h *BusinessHandler) RegisterVenue(c echo.Context) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req registerVenueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.GisID = strings.TrimSpace(req.GisID)
	req.Name = strings.TrimSpace(req.Name)
	req.City = strings.ToLower(strings.TrimSpace(req.City))
	if req.GisID == "" || req.Name == "" || req.City == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "gis_id, name and city are required"})
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid coordinates"})
	}
	category, err := model.ParseCategory(req.Category)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category"})
	}

	ctx := c.Request().Context()
	v := model.Venue{
		ID:         h.newID(),
		ExternalID: req.GisID,
		OwnerID:    &ownerID,
		Name:       req.Name,
		City:       req.City,
		Category:   category,
		Lat:        req.Lat,
		Lng:        req.Lng,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.Venues.Create(ctx, &v); err != nil {
		return respondError(c, err)
	}
	if err := h.Statuses.SetStatus(ctx, v.ExternalID, model.LiveFree, v.City); err != nil {
		log.Printf("business: initial status for %s: %v", v.ExternalID, err)
	}
	h.Notifier.Publish(notify.NewPlaceAdded, v.City, echo.Map{
		"venue_id": v.ID,
		"gis_id":   v.ExternalID,
		"name":     v.Name,
		"category": v.Category,
		"lat":      v.Lat,
		"lng":      v.Lng,
	})
	return c.JSON(http.StatusCreated, v)
}

type statusReq struct {
	GisID  string `json:"gis_id"`
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /v1/business/status.  Only the owner of the
// venue may change it; other venues are reported as not found.
func (h *BusinessHandler) UpdateStatus(c echo.Context) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	status, err := model.ParseOwnerStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be free, busy or unknown"})
	}
	ctx := c.Request().Context()
	v, err := h.Venues.GetByExternalIDAndOwner(ctx, strings.TrimSpace(req.GisID), ownerID)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Statuses.SetStatus(ctx, v.ExternalID, status, v.City); err != nil {
		return respondError(c, err)
	}
	h.Notifier.Publish(notify.LiveStatusChanged, v.City, echo.Map{"gis_id": v.ExternalID, "status": status})
	return c.JSON(http.StatusOK, echo.Map{"gis_id": v.ExternalID, "status": status})
}

// MyBookings handles GET /v1/business/my-bookings.
func (h *BusinessHandler) MyBookings(c echo.Context) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Bookings.ListForOwner(c.Request().Context(), ownerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": items})
}

type createSlotReq struct {
	VenueID   string    `json:"venue_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// CreateSlot handles POST /v1/business/slots.  Times are RFC 3339; a second
// slot at the same start time of a venue is a conflict.
func (h *BusinessHandler) CreateSlot(c echo.Context) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createSlotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.VenueID == "" || req.StartTime.IsZero() || !req.EndTime.After(req.StartTime) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "venue_id and a start_time before end_time are required"})
	}
	ctx := c.Request().Context()
	v, err := h.Venues.GetByID(ctx, req.VenueID)
	if err != nil {
		return respondError(c, err)
	}
	if v.OwnerID == nil || *v.OwnerID != ownerID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	s := model.Slot{
		ID:        h.newID(),
		VenueID:   v.ID,
		StartTime: req.StartTime.UTC(),
		EndTime:   req.EndTime.UTC(),
	}
	if err := h.Slots.Create(ctx, &s); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// ConfirmBooking handles POST /v1/business/bookings/:id/confirm.
func (h *BusinessHandler) ConfirmBooking(c echo.Context) error {
	return h.decide(c, h.Decider.Confirm)
}

// RejectBooking handles POST /v1/business/bookings/:id/reject.
func (h *BusinessHandler) RejectBooking(c echo.Context) error {
	return h.decide(c, h.Decider.Reject)
}

func (h *BusinessHandler) decide(c echo.Context, fn func(ctx context.Context, bookingID, ownerID string) (model.Booking, error)) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := fn(c.Request().Context(), id, ownerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}
