package router // package router defines how HTTP routes are registered for the API

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/quickreserve/internal/handler"
	"github.com/iliyamo/quickreserve/internal/middleware"
	"github.com/iliyamo/quickreserve/internal/model"
)

// Deps carries everything the routes need.
type Deps struct {
	JWTSecret    string
	Cache        handler.CacheState
	Auth         *handler.AuthHandler
	Business     *handler.BusinessHandler
	Client       *handler.ClientHandler
	Company      *handler.CompanyHandler
	ReserveLimit middleware.Limiter // nil disables the per-client limit
}

// Register wires every route onto e.
//
//	GET   /health
//	POST  /v1/auth/register, /v1/auth/login
//	/v1/business/*  business role
//	/v1/client/*    map, slots and company profiles are public; bookings
//	                need the client role
func Register(e *echo.Echo, d Deps) {
	e.GET("/health", handler.Health(d.Cache))

	a := e.Group("/v1/auth")
	a.POST("/register", d.Auth.Register)
	a.POST("/login", d.Auth.Login)

	jwt := middleware.JWTAuth(d.JWTSecret)

	b := e.Group("/v1/business", jwt, middleware.RequireRole(model.RoleBusiness))
	b.POST("/register", d.Business.RegisterVenue)
	b.PATCH("/status", d.Business.UpdateStatus)
	b.GET("/my-bookings", d.Business.MyBookings)
	b.POST("/slots", d.Business.CreateSlot)
	b.POST("/bookings/:id/confirm", d.Business.ConfirmBooking)
	b.POST("/bookings/:id/reject", d.Business.RejectBooking)
	b.POST("/companies", d.Company.Create)
	b.PATCH("/companies/:id", d.Company.SetOccupied)

	c := e.Group("/v1/client")
	c.GET("/map/nearby", d.Client.Nearby)
	c.GET("/place/:id/slots", d.Client.PlaceSlots)
	c.GET("/companies/:id", d.Company.Profile)
	c.GET("/bookings/:id", d.Client.Booking, jwt, middleware.RequireRole(model.RoleClient))
	c.POST("/booking/reserve", d.Client.Reserve,
		jwt,
		middleware.RequireRole(model.RoleClient),
		middleware.PerClient(d.ReserveLimit, "ratelimit:api", time.Minute))
}
