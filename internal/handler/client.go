package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/quickreserve/internal/middleware"
	"github.com/iliyamo/quickreserve/internal/model"
	"github.com/iliyamo/quickreserve/internal/nearby"
	"github.com/iliyamo/quickreserve/internal/service"
)

const (
	defaultCity     = "almaty"
	defaultRadiusKm = 5.0
	minRadiusKm     = 0.1
	maxRadiusKm     = 20.0
)

type NearbyFinder interface {
	FindNearby(ctx context.Context, q nearby.Query) ([]nearby.Item, error)
}

type VenueGetter interface {
	GetByID(ctx context.Context, id string) (model.Venue, error)
}

type SlotLister interface {
	ListUpcomingByVenue(ctx context.Context, venueID string, from time.Time) ([]model.Slot, error)
}

type Reserver interface {
	Reserve(ctx context.Context, slotID, clientID string) (model.Booking, error)
}

type BookingLookup interface {
	GetForClient(ctx context.Context, bookingID, clientID string) (model.ClientBooking, error)
}

// ClientHandler serves the map and booking endpoints for clients.
type ClientHandler struct {
	Finder       NearbyFinder
	Venues       VenueGetter
	Slots        SlotLister
	Reservations Reserver
	Bookings     BookingLookup

	now func() time.Time
}

func NewClientHandler(finder NearbyFinder, venues VenueGetter, slots SlotLister, reservations Reserver, bookings BookingLookup) *ClientHandler {
	return &ClientHandler{Finder: finder, Venues: venues, Slots: slots, Reservations: reservations, Bookings: bookings, now: time.Now}
}

// Nearby handles GET /v1/client/map/nearby?lat=&lng=&radius_km=&city=&category=&free_now=.
func (h *ClientHandler) Nearby(c echo.Context) error {
	lat, errLat := strconv.ParseFloat(c.QueryParam("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.QueryParam("lng"), 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "lat and lng are required"})
	}
	radius := defaultRadiusKm
	if raw := c.QueryParam("radius_km"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r < minRadiusKm || r > maxRadiusKm {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "radius_km must be between 0.1 and 20"})
		}
		radius = r
	}
	city := strings.ToLower(strings.TrimSpace(c.QueryParam("city")))
	if city == "" {
		city = defaultCity
	}
	q := nearby.Query{City: city, Lat: lat, Lng: lng, RadiusKm: radius}
	if raw := c.QueryParam("category"); raw != "" {
		cat, err := model.ParseCategory(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category"})
		}
		q.Category = &cat
	}
	if raw := c.QueryParam("free_now"); raw != "" {
		free, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "free_now must be true or false"})
		}
		q.FreeNow = free
	}

	items, err := h.Finder.FindNearby(c.Request().Context(), q)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// PlaceSlots handles GET /v1/client/place/:id/slots and lists the venue's
// upcoming slots that are available or pending.
func (h *ClientHandler) PlaceSlots(c echo.Context) error {
	ctx := c.Request().Context()
	v, err := h.Venues.GetByID(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	slots, err := h.Slots.ListUpcomingByVenue(ctx, v.ID, h.now().UTC())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"venue_id": v.ID, "slots": slots})
}

type reserveReq struct {
	SlotID string `json:"slot_id"`
}

// Reserve handles POST /v1/client/booking/reserve.
func (h *ClientHandler) Reserve(c echo.Context) error {
	clientID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.SlotID = strings.TrimSpace(req.SlotID)
	if req.SlotID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slot_id is required"})
	}
	b, err := h.Reservations.Reserve(c.Request().Context(), req.SlotID, clientID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id":          b.ID,
		"slot_id":             b.SlotID,
		"status":              b.Status,
		"pending_for_seconds": service.PendingForSeconds,
	})
}

// Booking handles GET /v1/client/bookings/:id.  Bookings of other clients
// are reported as not found.
func (h *ClientHandler) Booking(c echo.Context) error {
	clientID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Bookings.GetForClient(c.Request().Context(), id, clientID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}
