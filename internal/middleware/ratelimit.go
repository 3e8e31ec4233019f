package middleware

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// Limiter is a fixed-window counter such as ratelimit.FixedWindow.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Limit() int64
}

// PerClient limits each client to the limiter's budget per window on the
// route it wraps.  Clients are identified by user id when authenticated and
// by IP otherwise.  Counter errors let the request through.
func PerClient(l Limiter, prefix string, window time.Duration) echo.MiddlewareFunc {
	if l == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	retryAfter := strconv.Itoa(int(window / time.Second))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(prefix, c)
			ok, err := l.Allow(c.Request().Context(), key)
			if err != nil {
				log.Printf("ratelimit: counter error for key=%s: %v", key, err)
				return next(c)
			}
			c.Response().Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.Limit(), 10))
			if !ok {
				c.Response().Header().Set("Retry-After", retryAfter)
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"retry_after": int(window / time.Second),
				})
			}
			return next(c)
		}
	}
}

func rateKey(prefix string, c echo.Context) string {
	client := "ip:" + c.RealIP()
	if uid, ok := UserID(c); ok {
		client = "user:" + uid
	}
	route := c.Request().Method + " " + c.Path()
	return strings.Join([]string{prefix, client, route}, ":")
}
