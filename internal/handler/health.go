package handler // declare the package name; contains HTTP handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// CacheState reports whether the remote cache is currently bypassed.
type CacheState interface {
	Degraded() bool
}

// Health returns a health-check endpoint for load balancers and monitoring.
// The service answers 200 even while the cache runs from process memory;
// the body says which backend is serving.
func Health(cache CacheState) echo.HandlerFunc {
	return func(c echo.Context) error {
		backend := "redis"
		if cache == nil || cache.Degraded() {
			backend = "memory"
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "cache": backend})
	}
}
