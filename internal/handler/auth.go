package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/quickreserve/internal/model"
	"github.com/iliyamo/quickreserve/internal/repository"
	"github.com/iliyamo/quickreserve/internal/utils"
)

// UserStore is the subset of repository.UserRepo used by AuthHandler.
type UserStore interface {
	Create(ctx context.Context, phone, name, password string, role model.Role, cost int) (string, error)
	GetByPhone(ctx context.Context, phone string) (model.User, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Users      UserStore
	Secret     string
	AccessTTL  time.Duration
	BcryptCost int
}

func NewAuthHandler(users UserStore, secret string, accessTTL time.Duration, bcryptCost int) *AuthHandler {
	return &AuthHandler{Users: users, Secret: secret, AccessTTL: accessTTL, BcryptCost: bcryptCost}
}

// ----- DTOs -----

type registerReq struct {
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"` // business | client
}
type loginReq struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type userPart struct {
	ID    string     `json:"id"`
	Phone string     `json:"phone"`
	Name  string     `json:"name"`
	Role  model.Role `json:"role"`
}
type authResp struct {
	User        userPart  `json:"user"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

const minPasswordLen = 6

// Register: create user and return an access token immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Phone = strings.TrimSpace(req.Phone)
	req.Name = strings.TrimSpace(req.Name)
	if req.Phone == "" || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "phone/name required"})
	}
	if len(req.Password) < minPasswordLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 6 characters"})
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be business or client"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Phone, req.Name, req.Password, role, h.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrPhoneExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "phone already registered"})
		}
		return respondError(c, err)
	}
	return h.issue(c, http.StatusCreated, userPart{ID: uid, Phone: req.Phone, Name: req.Name, Role: role})
}

// Login: verify credentials and return a new access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "phone/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByPhone(ctx, req.Phone)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return respondError(c, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	return h.issue(c, http.StatusOK, userPart{ID: u.ID, Phone: u.Phone, Name: u.Name, Role: u.Role})
}

func (h *AuthHandler) issue(c echo.Context, status int, u userPart) error {
	access, err := utils.NewAccessToken(h.Secret, u.ID, u.Role, h.AccessTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(status, authResp{User: u, AccessToken: access.Token, TokenType: "bearer", ExpiresAt: access.Exp})
}
