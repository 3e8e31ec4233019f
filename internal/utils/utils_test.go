package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/quickreserve/internal/model"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("secret", "u-1", model.RoleBusiness, time.Hour)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	if time.Until(tok.Exp) < 59*time.Minute {
		t.Fatalf("exp too early: %v", tok.Exp)
	}
	sub, role, err := ParseAccessToken("secret", tok.Token)
	if err != nil || sub != "u-1" || role != model.RoleBusiness {
		t.Fatalf("ParseAccessToken = %q, %q, %v", sub, role, err)
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	valid, _ := NewAccessToken("secret", "u-1", model.RoleClient, time.Hour)
	expired, _ := NewAccessToken("secret", "u-1", model.RoleClient, -time.Minute)
	badRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u-1", "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u-1", "role": "client",
	}).SignedString([]byte("secret"))
	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "u-1", "role": "client", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))

	tests := map[string]struct{ secret, raw string }{
		"wrong secret": {"other", valid.Token},
		"expired":      {"secret", expired.Token},
		"unknown role": {"secret", badRole},
		"missing exp":  {"secret", noExp},
		"other alg":    {"secret", hs512},
		"garbage":      {"secret", "not.a.jwt"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := ParseAccessToken(tt.secret, tt.raw); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter22", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(hash, "hunter22") || VerifyPassword(hash, "hunter23") {
		t.Fatal("VerifyPassword mismatch")
	}
}
