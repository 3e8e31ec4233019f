package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/quickreserve/internal/kvstore"
	"github.com/iliyamo/quickreserve/internal/model"
	"github.com/iliyamo/quickreserve/internal/ratelimit"
	"github.com/iliyamo/quickreserve/internal/utils"
)

const secret = "test-secret"

func bearer(t *testing.T, userID string, role model.Role) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, userID, role, time.Hour)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	return "Bearer " + tok.Token
}

func newServer() *echo.Echo {
	e := echo.New()
	g := e.Group("/business", JWTAuth(secret), RequireRole(model.RoleBusiness))
	g.GET("/me", func(c echo.Context) error {
		id, _ := UserID(c)
		role, _ := RoleOf(c)
		return c.JSON(http.StatusOK, echo.Map{"id": id, "role": role})
	})
	return e
}

func TestAuthChain(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", bearer(t, "u-1", model.RoleClient), http.StatusForbidden},
		{"ok", bearer(t, "u-2", model.RoleBusiness), http.StatusOK},
	}
	e := newServer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/business/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) { return false, errors.New("down") }
func (failingLimiter) Limit() int64                                { return 1 }

func TestPerClient(t *testing.T) {
	limiter := ratelimit.NewFixedWindow(kvstore.NewMemory(), 2, time.Minute)
	e := echo.New()
	e.POST("/reserve", func(c echo.Context) error { return c.NoContent(http.StatusCreated) },
		PerClient(limiter, "ratelimit:api", time.Minute))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/reserve", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send("10.0.0.1"); rec.Code != http.StatusCreated {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	rec := send("10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" || rec.Header().Get("X-RateLimit-Limit") != "2" {
		t.Fatalf("headers = %v", rec.Header())
	}
	if rec := send("10.0.0.2"); rec.Code != http.StatusCreated {
		t.Fatalf("other client: status = %d", rec.Code)
	}
}

func TestPerClientFailsOpen(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		PerClient(failingLimiter{}, "ratelimit:api", time.Minute))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}
